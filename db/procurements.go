package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"vendosync/models"
)

const procurementItemColumns = `
        pi.procurement_id, pi.item_id, i.name AS item_name, i.category_id,
        c.name AS category_name, pi.quantity, pi.unit_price
    FROM procurement_item pi
    JOIN item i ON i.id = pi.item_id
    JOIN category c ON c.id = i.category_id`

func (s *Storage) CreateProcurement(ctx context.Context, p models.Procurement, lines []models.ProcurementItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO procurement (id, created_at) VALUES ($1, $2)`, p.ID, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert procurement: %w", err)
		}
		for _, l := range lines {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO procurement_item (procurement_id, item_id, quantity, unit_price)
                VALUES ($1, $2, $3, $4)`,
				p.ID, l.ItemID, l.Quantity, l.UnitPrice)
			if err != nil {
				return fmt.Errorf("insert procurement item %s: %w", l.ItemID, err)
			}
		}
		return nil
	})
}

func (s *Storage) GetProcurement(ctx context.Context, id string) (*models.Procurement, error) {
	p := &models.Procurement{}
	err := s.db.GetContext(ctx, p, `SELECT id, created_at FROM procurement WHERE id=$1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *Storage) ProcurementExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM procurement WHERE id=$1)`, id)
	return exists, err
}

func (s *Storage) GetProcurementLines(ctx context.Context, id string) ([]models.ProcurementItem, error) {
	items := []models.ProcurementItem{}
	query := `SELECT ` + procurementItemColumns + `
    WHERE pi.procurement_id = $1
    ORDER BY i.name`
	err := s.db.SelectContext(ctx, &items, query, id)
	return items, err
}

// GetProcurementItems строки закупки из заданного списка товаров
func (s *Storage) GetProcurementItems(ctx context.Context, procurementID string, itemIDs []string) ([]models.ProcurementItem, error) {
	items := []models.ProcurementItem{}
	query := `SELECT ` + procurementItemColumns + `
    WHERE pi.procurement_id = $1 AND pi.item_id = ANY($2)
    ORDER BY i.name`
	err := s.db.SelectContext(ctx, &items, query, procurementID, pq.Array(itemIDs))
	return items, err
}

// ListProcurements закупки с их строками и числом отправленных/отвеченных RFQ
func (s *Storage) ListProcurements(ctx context.Context) ([]models.ProcurementSummary, error) {
	list := []models.ProcurementSummary{}
	query := `
        SELECT p.id, p.created_at,
               COUNT(r.id) AS rfq_total,
               COUNT(r.response_time) AS rfq_complete
        FROM procurement p
        LEFT JOIN rfq r ON r.procurement_id = p.id
        GROUP BY p.id, p.created_at
        ORDER BY p.created_at DESC`
	if err := s.db.SelectContext(ctx, &list, query); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	var lines []models.ProcurementItem
	err := s.db.SelectContext(ctx, &lines, `SELECT `+procurementItemColumns+`
    WHERE pi.procurement_id = ANY($1)
    ORDER BY i.name`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[string][]models.ProcurementItem, len(list))
	for _, l := range lines {
		byID[l.ProcurementID] = append(byID[l.ProcurementID], l)
	}
	for i := range list {
		list[i].Items = byID[list[i].ID]
		if list[i].Items == nil {
			list[i].Items = []models.ProcurementItem{}
		}
	}
	return list, nil
}

// DeleteProcurement удаляет закупку; строки и RFQ удаляются каскадно
func (s *Storage) DeleteProcurement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM procurement WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, models.ErrNotFound)
}
