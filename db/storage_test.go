package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vendosync/db"
	"vendosync/db/migrations"
	"vendosync/models"
)

// Тесты хранилища идут против настоящего Postgres и пропускаются без TEST_POSTGRES_CONN
func newStorage(t *testing.T) *db.Storage {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_CONN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_CONN is not set")
	}

	conn, err := db.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrations.Run(conn.DB))
	return db.NewStorage(conn)
}

func seed(t *testing.T, s *db.Storage) (procurementID, itemID string, vendors []models.Vendor) {
	t.Helper()
	ctx := context.Background()

	item := &models.Item{ID: uuid.NewString(), Name: "Bolt " + uuid.NewString()[:4], CategoryID: 1}
	require.NoError(t, s.CreateItem(ctx, item))

	for _, name := range []string{"Acme", "Globex"} {
		v := &models.Vendor{ID: uuid.NewString(), Name: name, Email: name + "@example.com", Address: "Main St"}
		require.NoError(t, s.CreateVendor(ctx, v, []int{1}))
		require.Equal(t, -1.0, v.Gred)
		vendors = append(vendors, *v)
	}

	p := models.Procurement{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateProcurement(ctx, p, []models.ProcurementItem{{
		ItemID:    item.ID,
		Quantity:  10,
		UnitPrice: decimal.RequireFromString("5.00"),
	}}))

	t.Cleanup(func() {
		s.DeleteProcurement(context.Background(), p.ID)
		for _, v := range vendors {
			s.DeleteVendor(context.Background(), v.ID)
		}
		s.DeleteItem(context.Background(), item.ID)
	})
	return p.ID, item.ID, vendors
}

func TestRFQLifecycleStorage(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()
	procID, itemID, vendors := seed(t, s)

	items, err := s.GetProcurementItems(ctx, procID, []string{itemID, "missing"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	now := time.Now().UTC().Truncate(time.Microsecond)
	var rfqs []models.RFQ
	var lines []models.QuoteLine
	for _, v := range vendors {
		id := uuid.NewString()
		rfqs = append(rfqs, models.RFQ{ID: id, CreatedAt: now, Token: "token-" + id, Status: models.RFQEnabled, ProcurementID: procID, VendorID: v.ID})
		lines = append(lines, models.QuoteLine{RFQID: id, ProcurementID: procID, ItemID: itemID, Quantity: 10, UnitPrice: decimal.RequireFromString("5.00")})
	}
	require.NoError(t, s.CreateRFQs(ctx, rfqs, lines))

	first := rfqs[0].ID
	got, err := s.GetRFQ(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "Acme", got.VendorName)
	require.Nil(t, got.ResponseTime)

	require.ErrorIs(t, s.PlaceOrder(ctx, first, now), models.ErrConflict)

	require.NoError(t, s.SaveQuote(ctx, first, []models.QuoteLine{{ItemID: itemID, Quantity: 8, UnitPrice: decimal.RequireFromString("4.50")}}, now))

	quote, err := s.GetQuoteLines(ctx, first)
	require.NoError(t, err)
	require.Equal(t, 8, quote[0].Quantity)

	// ответ сразу виден в общей строке закупки
	shared, err := s.GetProcurementLines(ctx, procID)
	require.NoError(t, err)
	require.Equal(t, 8, shared[0].Quantity)
	require.True(t, decimal.RequireFromString("4.50").Equal(shared[0].UnitPrice))

	// ответ второго поставщика перезаписывает общую строку, но не котировку первого
	second := rfqs[1].ID
	require.NoError(t, s.SaveQuote(ctx, second, []models.QuoteLine{{ItemID: itemID, Quantity: 6, UnitPrice: decimal.RequireFromString("4.00")}}, now))
	shared, err = s.GetProcurementLines(ctx, procID)
	require.NoError(t, err)
	require.Equal(t, 6, shared[0].Quantity)
	quote, err = s.GetQuoteLines(ctx, first)
	require.NoError(t, err)
	require.Equal(t, 8, quote[0].Quantity)

	require.ErrorIs(t, s.SaveQuote(ctx, first, []models.QuoteLine{{ItemID: "missing", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}, now), models.ErrNotFound)
	require.ErrorIs(t, s.SaveQuote(ctx, "missing", nil, now), models.ErrNotFound)

	require.NoError(t, s.PlaceOrder(ctx, first, now.Add(time.Minute)))
	shared, err = s.GetProcurementLines(ctx, procID)
	require.NoError(t, err)
	require.Equal(t, 8, shared[0].Quantity)
	require.True(t, decimal.RequireFromString("4.50").Equal(shared[0].UnitPrice))

	require.ErrorIs(t, s.SaveQuote(ctx, first, nil, now), models.ErrConflict)
	require.ErrorIs(t, s.DisableRFQ(ctx, first), models.ErrConflict)
	require.NoError(t, s.DisableRFQ(ctx, second))
	require.ErrorIs(t, s.SaveQuote(ctx, second, nil, now), models.ErrConflict)

	list, err := s.ListProcurements(ctx)
	require.NoError(t, err)
	for _, p := range list {
		if p.ID == procID {
			require.Equal(t, 2, p.RFQTotal)
			require.Equal(t, 2, p.RFQComplete)
			require.Len(t, p.Items, 1)
		}
	}

	_, err = s.GetRFQ(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestVendorReviewsAndSuggestions(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()
	_, _, vendors := seed(t, s)

	v, err := s.ReplaceVendorReviews(ctx, vendors[0].ID, 72.5, []models.Review{
		{ID: uuid.NewString(), Rating: 4, Caption: "good", Date: time.Now().UTC()},
	})
	require.NoError(t, err)
	require.Equal(t, 72.5, v.Gred)
	require.Len(t, v.Reviews, 1)
	require.Len(t, v.Categories, 1)

	suggested, err := s.SuggestVendors(ctx, 1)
	require.NoError(t, err)
	var ids []string
	for _, sv := range suggested {
		ids = append(ids, sv.ID)
	}
	require.Contains(t, ids, vendors[0].ID)
	require.NotContains(t, ids, vendors[1].ID)

	_, err = s.ReplaceVendorReviews(ctx, "missing", 1, nil)
	require.ErrorIs(t, err, models.ErrNotFound)
}
