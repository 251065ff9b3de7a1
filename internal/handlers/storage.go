package handlers

import (
	"context"

	"vendosync/models"
)

// StorageInterface справочники: поставщики, товары, категории
type StorageInterface interface {
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	GetVendor(ctx context.Context, id string) (*models.Vendor, error)
	CreateVendor(ctx context.Context, v *models.Vendor, categoryIDs []int) error
	UpdateVendor(ctx context.Context, v *models.Vendor, categoryIDs []int) error
	DeleteVendor(ctx context.Context, id string) error
	ApproveVendor(ctx context.Context, id string) error

	ListItems(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	CreateItem(ctx context.Context, it *models.Item) error
	UpdateItem(ctx context.Context, it *models.Item) error
	SetItemPhoto(ctx context.Context, id string, photo *string) error
	DeleteItem(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	ExistingCategoryIDs(ctx context.Context, ids []int) ([]int, error)
}
