// Package procurement ведет закупки и их строки.
package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendosync/internal/events"
	"vendosync/models"
)

var (
	ErrProcurementNotFound = errors.New("procurement not found")
	ErrUnknownItem         = errors.New("unknown item")
	ErrInvalidLines        = errors.New("invalid procurement lines")
)

// Line строка новой закупки
type Line struct {
	ItemID   string          `json:"id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type Store interface {
	ExistingItemIDs(ctx context.Context, ids []string) ([]string, error)
	CreateProcurement(ctx context.Context, p models.Procurement, lines []models.ProcurementItem) error
	GetProcurement(ctx context.Context, id string) (*models.Procurement, error)
	GetProcurementLines(ctx context.Context, id string) ([]models.ProcurementItem, error)
	ListProcurements(ctx context.Context) ([]models.ProcurementSummary, error)
	DeleteProcurement(ctx context.Context, id string) error
	SuggestVendors(ctx context.Context, categoryID int) ([]models.Vendor, error)
}

type Service struct {
	store     Store
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(store Store, publisher events.Publisher, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Create сохраняет закупку и ее строки
func (s *Service) Create(ctx context.Context, actorID string, lines []Line) (*models.Procurement, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInvalidLines)
	}

	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if l.ItemID == "" {
			return nil, fmt.Errorf("%w: item id is required", ErrInvalidLines)
		}
		if seen[l.ItemID] {
			return nil, fmt.Errorf("%w: item %s listed twice", ErrInvalidLines, l.ItemID)
		}
		if err := models.CheckLine(l.Quantity, l.Price); err != nil {
			return nil, fmt.Errorf("%w: item %s: %v", ErrInvalidLines, l.ItemID, err)
		}
		seen[l.ItemID] = true
		ids = append(ids, l.ItemID)
	}

	found, err := s.store.ExistingItemIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check items: %w", err)
	}
	if len(found) != len(ids) {
		known := make(map[string]bool, len(found))
		for _, id := range found {
			known[id] = true
		}
		for _, id := range ids {
			if !known[id] {
				return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
			}
		}
	}

	p := models.Procurement{ID: s.newID(), CreatedAt: s.now()}
	rows := make([]models.ProcurementItem, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, models.ProcurementItem{
			ProcurementID: p.ID,
			ItemID:        l.ItemID,
			Quantity:      l.Quantity,
			UnitPrice:     l.Price,
		})
	}

	if err := s.store.CreateProcurement(ctx, p, rows); err != nil {
		return nil, fmt.Errorf("save procurement: %w", err)
	}

	s.log.Info("Procurement created", zap.String("procurement_id", p.ID), zap.Int("lines", len(rows)))
	s.publish(ctx, actorID, events.Add, p)
	return &p, nil
}

// Items текущие строки закупки
func (s *Service) Items(ctx context.Context, id string) ([]models.ProcurementItem, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.store.GetProcurementLines(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load procurement lines: %w", err)
	}
	return items, nil
}

// List все закупки со строками и счетчиками RFQ
func (s *Service) List(ctx context.Context) ([]models.ProcurementSummary, error) {
	list, err := s.store.ListProcurements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list procurements: %w", err)
	}
	return list, nil
}

// Delete удаляет закупку вместе со строками и RFQ
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProcurement(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrProcurementNotFound
		}
		return fmt.Errorf("delete procurement: %w", err)
	}
	s.publish(ctx, actorID, events.Delete, *p)
	return nil
}

// SuggestVendors поставщики категории с положительной оценкой
func (s *Service) SuggestVendors(ctx context.Context, categoryID int) ([]models.Vendor, error) {
	vendors, err := s.store.SuggestVendors(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("suggest vendors: %w", err)
	}
	return vendors, nil
}

func (s *Service) get(ctx context.Context, id string) (*models.Procurement, error) {
	p, err := s.store.GetProcurement(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrProcurementNotFound
		}
		return nil, fmt.Errorf("load procurement: %w", err)
	}
	return p, nil
}

func (s *Service) publish(ctx context.Context, actorID string, change events.ChangeType, p models.Procurement) {
	err := s.publisher.Publish(ctx, events.Event{
		ActorID:      actorID,
		ChangeType:   change,
		ResourceType: events.ResourceProcurement,
		Payload:      p,
	})
	if err != nil {
		s.log.Warn("Failed to publish procurement change", zap.String("procurement_id", p.ID), zap.Error(err))
	}
}
