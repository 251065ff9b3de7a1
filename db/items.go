package db

import (
	"context"

	"github.com/lib/pq"

	"vendosync/models"
)

const itemSelect = `
    SELECT i.id, i.name, i.photo, i.last_update, i.category_id, c.name AS category_name
    FROM item i
    JOIN category c ON c.id = i.category_id`

func (s *Storage) ListItems(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	err := s.db.SelectContext(ctx, &items, itemSelect+` ORDER BY i.name`)
	return items, err
}

func (s *Storage) GetItem(ctx context.Context, id string) (*models.Item, error) {
	it := &models.Item{}
	if err := s.db.GetContext(ctx, it, itemSelect+` WHERE i.id=$1`, id); err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

func (s *Storage) CreateItem(ctx context.Context, it *models.Item) error {
	query := `
        INSERT INTO item (id, name, category_id)
        VALUES ($1, $2, $3)
        RETURNING last_update`
	return s.db.QueryRowContext(ctx, query, it.ID, it.Name, it.CategoryID).Scan(&it.LastUpdate)
}

func (s *Storage) UpdateItem(ctx context.Context, it *models.Item) error {
	query := `
        UPDATE item SET name=$1, category_id=$2, last_update=NOW()
        WHERE id=$3
        RETURNING last_update`
	err := s.db.QueryRowContext(ctx, query, it.Name, it.CategoryID, it.ID).Scan(&it.LastUpdate)
	return notFound(err)
}

func (s *Storage) SetItemPhoto(ctx context.Context, id string, photo *string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE item SET photo=$1 WHERE id=$2`, photo, id)
	if err != nil {
		return err
	}
	return affected(res, models.ErrNotFound)
}

func (s *Storage) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM item WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return affected(res, models.ErrNotFound)
}

// ExistingItemIDs какие из переданных товаров существуют
func (s *Storage) ExistingItemIDs(ctx context.Context, ids []string) ([]string, error) {
	var found []string
	err := s.db.SelectContext(ctx, &found, `SELECT id FROM item WHERE id = ANY($1)`, pq.Array(ids))
	return found, err
}

func (s *Storage) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, `SELECT id, name FROM category ORDER BY id`)
	return categories, err
}

// ExistingCategoryIDs какие из переданных категорий существуют
func (s *Storage) ExistingCategoryIDs(ctx context.Context, ids []int) ([]int, error) {
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	var found []int
	err := s.db.SelectContext(ctx, &found, `SELECT id FROM category WHERE id = ANY($1)`, pq.Array(ids64))
	return found, err
}
