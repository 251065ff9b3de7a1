package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vendosync/models"
)

const rfqSelect = `
    SELECT r.id, r.created_at, r.token, r.response_time, r.status,
           r.procurement_id, r.vendor_id, v.name AS vendor_name, v.email AS vendor_email
    FROM rfq r
    JOIN vendor v ON v.id = r.vendor_id`

func (s *Storage) CreateRFQs(ctx context.Context, rfqs []models.RFQ, lines []models.QuoteLine) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range rfqs {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO rfq (id, created_at, token, status, procurement_id, vendor_id)
                VALUES ($1, $2, $3, $4, $5, $6)`,
				r.ID, r.CreatedAt, r.Token, r.Status, r.ProcurementID, r.VendorID)
			if err != nil {
				return fmt.Errorf("insert rfq %s: %w", r.ID, err)
			}
		}
		for _, l := range lines {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO rfq_quote_line (rfq_id, procurement_id, item_id, quantity, unit_price)
                VALUES ($1, $2, $3, $4, $5)`,
				l.RFQID, l.ProcurementID, l.ItemID, l.Quantity, l.UnitPrice)
			if err != nil {
				return fmt.Errorf("insert quote line %s/%s: %w", l.RFQID, l.ItemID, err)
			}
		}
		return nil
	})
}

func (s *Storage) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	r := &models.RFQ{}
	if err := s.db.GetContext(ctx, r, rfqSelect+` WHERE r.id=$1`, id); err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (s *Storage) ListRFQs(ctx context.Context) ([]models.RFQ, error) {
	rfqs := []models.RFQ{}
	err := s.db.SelectContext(ctx, &rfqs, rfqSelect+` ORDER BY r.created_at DESC, v.name`)
	return rfqs, err
}

func (s *Storage) GetQuoteLines(ctx context.Context, rfqID string) ([]models.QuoteLine, error) {
	lines := []models.QuoteLine{}
	query := `
        SELECT l.rfq_id, l.procurement_id, l.item_id, i.name AS item_name, l.quantity, l.unit_price
        FROM rfq_quote_line l
        JOIN item i ON i.id = l.item_id
        WHERE l.rfq_id = $1
        ORDER BY i.name`
	err := s.db.SelectContext(ctx, &lines, query, rfqID)
	return lines, err
}

// SaveQuote перезаписывает строки котировки и общие строки закупки под блокировкой строки RFQ
func (s *Storage) SaveQuote(ctx context.Context, rfqID string, lines []models.QuoteLine, respondedAt time.Time) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status models.RFQStatus
		err := tx.GetContext(ctx, &status, `SELECT status FROM rfq WHERE id=$1 FOR UPDATE`, rfqID)
		if err != nil {
			return notFound(err)
		}
		if status != models.RFQEnabled {
			return models.ErrConflict
		}

		for _, l := range lines {
			res, err := tx.ExecContext(ctx, `
                UPDATE rfq_quote_line SET quantity=$1, unit_price=$2
                WHERE rfq_id=$3 AND item_id=$4`,
				l.Quantity, l.UnitPrice, rfqID, l.ItemID)
			if err != nil {
				return fmt.Errorf("update quote line %s: %w", l.ItemID, err)
			}
			if err := affected(res, models.ErrNotFound); err != nil {
				return fmt.Errorf("update quote line %s: %w", l.ItemID, err)
			}

			// общая строка закупки: последний ответ перезаписывает предыдущий
			_, err = tx.ExecContext(ctx, `
                UPDATE procurement_item pi SET quantity=$1, unit_price=$2
                FROM rfq r
                WHERE r.id=$3 AND pi.procurement_id=r.procurement_id AND pi.item_id=$4`,
				l.Quantity, l.UnitPrice, rfqID, l.ItemID)
			if err != nil {
				return fmt.Errorf("update procurement item %s: %w", l.ItemID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE rfq SET response_time=$1 WHERE id=$2`, respondedAt, rfqID)
		return err
	})
}

// PlaceOrder закрывает RFQ и переносит принятую котировку в строки закупки
func (s *Storage) PlaceOrder(ctx context.Context, rfqID string, orderedAt time.Time) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE rfq SET status=$1, response_time=$2
            WHERE id=$3 AND status=$4 AND response_time IS NOT NULL`,
			models.RFQOrdered, orderedAt, rfqID, models.RFQEnabled)
		if err != nil {
			return fmt.Errorf("update rfq status: %w", err)
		}
		if err := affected(res, models.ErrConflict); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
            UPDATE procurement_item pi
            SET quantity = l.quantity, unit_price = l.unit_price
            FROM rfq_quote_line l
            WHERE l.rfq_id = $1
              AND pi.procurement_id = l.procurement_id
              AND pi.item_id = l.item_id`, rfqID)
		if err != nil {
			return fmt.Errorf("reconcile procurement items: %w", err)
		}
		return nil
	})
}

func (s *Storage) DisableRFQ(ctx context.Context, rfqID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rfq SET status=$1 WHERE id=$2 AND status=$3`,
		models.RFQDisabled, rfqID, models.RFQEnabled)
	if err != nil {
		return err
	}
	return affected(res, models.ErrConflict)
}
