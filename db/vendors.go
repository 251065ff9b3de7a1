package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"vendosync/models"
)

const vendorColumns = `v.id, v.name, v.email, v.address, v.approved, v.gred`

func (s *Storage) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	err := s.db.SelectContext(ctx, &vendors, `SELECT `+vendorColumns+` FROM vendor v ORDER BY v.name`)
	if err != nil {
		return nil, err
	}
	return vendors, s.attachCategories(ctx, vendors)
}

func (s *Storage) GetVendor(ctx context.Context, id string) (*models.Vendor, error) {
	v := models.Vendor{}
	if err := s.db.GetContext(ctx, &v, `SELECT `+vendorColumns+` FROM vendor v WHERE v.id=$1`, id); err != nil {
		return nil, notFound(err)
	}
	one := []models.Vendor{v}
	if err := s.attachCategories(ctx, one); err != nil {
		return nil, err
	}
	v = one[0]

	v.Reviews = []models.Review{}
	err := s.db.SelectContext(ctx, &v.Reviews, `
        SELECT id, vendor_id, rating, caption, date
        FROM review WHERE vendor_id=$1 ORDER BY date DESC`, id)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Storage) GetVendorsByIDs(ctx context.Context, ids []string) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	err := s.db.SelectContext(ctx, &vendors, `SELECT `+vendorColumns+` FROM vendor v WHERE v.id = ANY($1)`, pq.Array(ids))
	return vendors, err
}

// SuggestVendors поставщики категории с положительной оценкой, лучшие первыми
func (s *Storage) SuggestVendors(ctx context.Context, categoryID int) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	query := `
        SELECT ` + vendorColumns + `
        FROM vendor v
        JOIN vendor_category vc ON vc.vendor_id = v.id
        WHERE vc.category_id = $1 AND v.gred > 0
        ORDER BY v.gred DESC, v.name`
	if err := s.db.SelectContext(ctx, &vendors, query, categoryID); err != nil {
		return nil, err
	}
	return vendors, s.attachCategories(ctx, vendors)
}

func (s *Storage) CreateVendor(ctx context.Context, v *models.Vendor, categoryIDs []int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
            INSERT INTO vendor (id, name, email, address)
            VALUES ($1, $2, $3, $4)
            RETURNING approved, gred`,
			v.ID, v.Name, v.Email, v.Address).Scan(&v.Approved, &v.Gred)
		if err != nil {
			return fmt.Errorf("insert vendor: %w", err)
		}
		return setVendorCategories(ctx, tx, v.ID, categoryIDs)
	})
}

// UpdateVendor меняет данные поставщика и заменяет его категории
func (s *Storage) UpdateVendor(ctx context.Context, v *models.Vendor, categoryIDs []int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
            UPDATE vendor SET name=$1, email=$2, address=$3
            WHERE id=$4
            RETURNING approved, gred`,
			v.Name, v.Email, v.Address, v.ID).Scan(&v.Approved, &v.Gred)
		if err != nil {
			return notFound(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vendor_category WHERE vendor_id=$1`, v.ID); err != nil {
			return fmt.Errorf("clear vendor categories: %w", err)
		}
		return setVendorCategories(ctx, tx, v.ID, categoryIDs)
	})
}

func setVendorCategories(ctx context.Context, tx *sqlx.Tx, vendorID string, categoryIDs []int) error {
	for _, c := range categoryIDs {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO vendor_category (vendor_id, category_id) VALUES ($1, $2)
            ON CONFLICT DO NOTHING`, vendorID, c)
		if err != nil {
			return fmt.Errorf("insert vendor category %d: %w", c, err)
		}
	}
	return nil
}

func (s *Storage) DeleteVendor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vendor WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, models.ErrNotFound)
}

func (s *Storage) ApproveVendor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE vendor SET approved=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, models.ErrNotFound)
}

// ReplaceVendorReviews заменяет отзывы и оценку поставщика
func (s *Storage) ReplaceVendorReviews(ctx context.Context, vendorID string, gred float64, reviews []models.Review) (*models.Vendor, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE vendor SET gred=$1 WHERE id=$2`, gred, vendorID)
		if err != nil {
			return fmt.Errorf("update gred: %w", err)
		}
		if err := affected(res, models.ErrNotFound); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM review WHERE vendor_id=$1`, vendorID); err != nil {
			return fmt.Errorf("delete reviews: %w", err)
		}
		for _, r := range reviews {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO review (id, vendor_id, rating, caption, date)
                VALUES ($1, $2, $3, $4, $5)`,
				r.ID, vendorID, r.Rating, r.Caption, r.Date)
			if err != nil {
				return fmt.Errorf("insert review: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetVendor(ctx, vendorID)
}

type vendorCategory struct {
	VendorID string `db:"vendor_id"`
	models.Category
}

func (s *Storage) attachCategories(ctx context.Context, vendors []models.Vendor) error {
	if len(vendors) == 0 {
		return nil
	}
	ids := make([]string, len(vendors))
	for i, v := range vendors {
		ids[i] = v.ID
	}

	var rows []vendorCategory
	err := s.db.SelectContext(ctx, &rows, `
        SELECT vc.vendor_id, c.id, c.name
        FROM vendor_category vc
        JOIN category c ON c.id = vc.category_id
        WHERE vc.vendor_id = ANY($1)
        ORDER BY c.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load vendor categories: %w", err)
	}

	byVendor := make(map[string][]models.Category, len(vendors))
	for _, r := range rows {
		byVendor[r.VendorID] = append(byVendor[r.VendorID], r.Category)
	}
	for i := range vendors {
		vendors[i].Categories = byVendor[vendors[i].ID]
		if vendors[i].Categories == nil {
			vendors[i].Categories = []models.Category{}
		}
	}
	return nil
}
