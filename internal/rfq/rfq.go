// Package rfq управляет жизненным циклом запросов котировок:
// создание и рассылка поставщикам, прием ответа по токену, размещение заказа.
package rfq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vendosync/internal/events"
	"vendosync/internal/metrics"
	"vendosync/internal/notify"
	"vendosync/models"
)

// Tokens выпускает и проверяет токены доступа поставщика
type Tokens interface {
	Issue(subject string) (string, error)
	Verify(token string) (string, error)
}

// Store хранилище RFQ
type Store interface {
	ProcurementExists(ctx context.Context, id string) (bool, error)
	GetProcurementItems(ctx context.Context, procurementID string, itemIDs []string) ([]models.ProcurementItem, error)
	GetVendorsByIDs(ctx context.Context, ids []string) ([]models.Vendor, error)

	// CreateRFQs сохраняет RFQ вместе с их строками котировок в одной транзакции
	CreateRFQs(ctx context.Context, rfqs []models.RFQ, lines []models.QuoteLine) error
	GetRFQ(ctx context.Context, id string) (*models.RFQ, error)
	GetQuoteLines(ctx context.Context, rfqID string) ([]models.QuoteLine, error)
	ListRFQs(ctx context.Context) ([]models.RFQ, error)

	// SaveQuote перезаписывает строки RFQ, те же строки закупки и ставит response_time.
	// Возвращает models.ErrConflict, если RFQ уже не ENABLED.
	SaveQuote(ctx context.Context, rfqID string, lines []models.QuoteLine, respondedAt time.Time) error
	// PlaceOrder переводит отвеченный ENABLED RFQ в ORDERED и переносит
	// его строки в строки закупки. models.ErrConflict, если условие не выполнено.
	PlaceOrder(ctx context.Context, rfqID string, orderedAt time.Time) error
	DisableRFQ(ctx context.Context, rfqID string) error
}

// CreateRequest выбор строк закупки и поставщиков
type CreateRequest struct {
	ProcurementID string   `json:"id"`
	ItemIDs       []string `json:"items"`
	VendorIDs     []string `json:"vendors"`
}

// ItemUpdate цена и количество, предложенные поставщиком.
// Все три поля обязательны; указатели отличают пропущенное поле от нуля.
type ItemUpdate struct {
	ItemID    string           `json:"item_id"`
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

func (u ItemUpdate) missingFields() []string {
	var out []string
	if u.ItemID == "" {
		out = append(out, "item_id")
	}
	if u.Quantity == nil {
		out = append(out, "quantity")
	}
	if u.UnitPrice == nil {
		out = append(out, "unit_price")
	}
	return out
}

// Режимы отображения RFQ
const (
	ModeEdit   = "edit"
	ModeSubmit = "submit"
)

// ViewLine строка котировки с суммой
type ViewLine struct {
	models.QuoteLine
	Subtotal decimal.Decimal `json:"subtotal"`
}

// QuoteView проекция RFQ для страницы котировки
type QuoteView struct {
	RFQID        string           `json:"rfq_id"`
	Date         time.Time        `json:"date"`
	Vendor       string           `json:"vendor"`
	Status       models.RFQStatus `json:"status"`
	ResponseTime *time.Time       `json:"response_time"`
	Items        []ViewLine       `json:"item_list"`
	Total        decimal.Decimal  `json:"total"`
	Mode         string           `json:"mode"`
	Editable     bool             `json:"editable"`
}

// Service конечный автомат RFQ
type Service struct {
	store     Store
	tokens    Tokens
	mailer    notify.Mailer
	publisher events.Publisher
	publicURL string
	log       *zap.Logger
	metrics   *metrics.Metrics

	now   func() time.Time
	newID func() string
}

func NewService(store Store, tokens Tokens, mailer notify.Mailer, publisher events.Publisher, publicURL string, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		tokens:    tokens,
		mailer:    mailer,
		publisher: publisher,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithClock подменяет часы (для тестов)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDs подменяет генератор идентификаторов (для тестов)
func (s *Service) WithIDs(newID func() string) *Service {
	s.newID = newID
	return s
}

// Link ссылка на страницу котировки для поставщика
func (s *Service) Link(token string) string {
	return s.publicURL + "/api/rfqs/view?token=" + url.QueryEscape(token)
}

// Create создает по одному RFQ на поставщика, рассылает письма и уведомляет подписчиков
func (s *Service) Create(ctx context.Context, actorID string, req CreateRequest) (rfqs []models.RFQ, err error) {
	defer func() { s.observe("create", err) }()

	itemIDs := unique(req.ItemIDs)
	vendorIDs := unique(req.VendorIDs)
	if req.ProcurementID == "" || len(itemIDs) == 0 || len(vendorIDs) == 0 {
		return nil, fmt.Errorf("%w: procurement, items and vendors are required", ErrInvalidRequest)
	}

	exists, err := s.store.ProcurementExists(ctx, req.ProcurementID)
	if err != nil {
		return nil, fmt.Errorf("check procurement: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: procurement %s", ErrInvalidProcurementReference, req.ProcurementID)
	}

	items, err := s.store.GetProcurementItems(ctx, req.ProcurementID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("load procurement items: %w", err)
	}
	if len(items) != len(itemIDs) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProcurementReference, missing(itemIDs, items, func(i models.ProcurementItem) string { return i.ItemID }))
	}

	vendors, err := s.store.GetVendorsByIDs(ctx, vendorIDs)
	if err != nil {
		return nil, fmt.Errorf("load vendors: %w", err)
	}
	byID := make(map[string]models.Vendor, len(vendors))
	for _, v := range vendors {
		byID[v.ID] = v
	}

	now := s.now()
	lines := make([]models.QuoteLine, 0, len(vendorIDs)*len(items))
	for _, vendorID := range vendorIDs {
		vendor, ok := byID[vendorID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVendorNotFound, vendorID)
		}

		id := s.newID()
		tok, err := s.tokens.Issue(id)
		if err != nil {
			return nil, fmt.Errorf("issue rfq token: %w", err)
		}
		rfqs = append(rfqs, models.RFQ{
			ID:            id,
			CreatedAt:     now,
			Token:         tok,
			Status:        models.RFQEnabled,
			ProcurementID: req.ProcurementID,
			VendorID:      vendor.ID,
			VendorName:    vendor.Name,
			VendorEmail:   vendor.Email,
		})
		for _, it := range items {
			lines = append(lines, models.QuoteLine{
				RFQID:         id,
				ProcurementID: req.ProcurementID,
				ItemID:        it.ItemID,
				ItemName:      it.ItemName,
				Quantity:      it.Quantity,
				UnitPrice:     it.UnitPrice,
			})
		}
	}

	if err := s.store.CreateRFQs(ctx, rfqs, lines); err != nil {
		return nil, fmt.Errorf("save rfqs: %w", err)
	}

	for _, r := range rfqs {
		s.notifyVendor(ctx, r)
	}
	for _, r := range rfqs {
		s.publish(ctx, actorID, events.Add, r)
	}
	return rfqs, nil
}

// ошибки отправки не прерывают создание RFQ
func (s *Service) notifyVendor(ctx context.Context, r models.RFQ) {
	log := s.log.With(zap.String("rfq_id", r.ID), zap.String("vendor_id", r.VendorID))

	body, err := notify.RenderRFQInvite(r.VendorName, s.Link(r.Token))
	if err == nil {
		err = s.mailer.Send(ctx, notify.Message{
			Recipient: r.VendorEmail,
			Subject:   notify.RFQInviteSubject,
			HTMLBody:  body,
		})
	}
	if err != nil {
		log.Warn("Failed to notify vendor", zap.Error(err))
		s.countNotification("failed")
		return
	}
	log.Debug("RFQ invite sent")
	s.countNotification("sent")
}

// SubmitResponse принимает котировку поставщика. Все строки применяются вместе или ни одна.
// Статус остается ENABLED. Общие строки закупки тоже перезаписываются: последний ответ побеждает.
func (s *Service) SubmitResponse(ctx context.Context, token string, updates []ItemUpdate) (err error) {
	defer func() { s.observe("submit", err) }()

	r, err := s.resolve(ctx, token)
	if err != nil {
		return err
	}
	if r.Status == models.RFQOrdered {
		return ErrRFQClosed
	}

	lines, err := s.store.GetQuoteLines(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("load quote lines: %w", err)
	}
	idx := make(map[string]int, len(lines))
	for i, l := range lines {
		idx[l.ItemID] = i
	}

	changed := make([]models.QuoteLine, 0, len(updates))
	for n, u := range updates {
		if fields := u.missingFields(); len(fields) > 0 {
			return fmt.Errorf("%w: items[%d]: %s", ErrIncompleteItem, n, strings.Join(fields, ", "))
		}
		i, ok := idx[u.ItemID]
		if !ok {
			return fmt.Errorf("%w: item %s", ErrItemNotInRFQ, u.ItemID)
		}
		if err := models.CheckLine(*u.Quantity, *u.UnitPrice); err != nil {
			return fmt.Errorf("%w: item %s: %v", ErrInvalidRequest, u.ItemID, err)
		}
		line := lines[i]
		line.Quantity = *u.Quantity
		line.UnitPrice = *u.UnitPrice
		changed = append(changed, line)
	}

	if err := s.store.SaveQuote(ctx, r.ID, changed, s.now()); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return ErrRFQClosed
		}
		return fmt.Errorf("save quote: %w", err)
	}

	s.log.Info("RFQ response submitted", zap.String("rfq_id", r.ID), zap.Int("items", len(changed)))
	s.publish(ctx, r.VendorID, events.Modify, s.reload(ctx, r))
	return nil
}

// PlaceOrder принимает котировку и переводит RFQ в ORDERED
func (s *Service) PlaceOrder(ctx context.Context, token string) (err error) {
	defer func() { s.observe("order", err) }()

	r, err := s.resolve(ctx, token)
	if err != nil {
		return err
	}
	if r.Status == models.RFQOrdered {
		return ErrRFQClosed
	}
	if !r.Responded() {
		return ErrVendorHasNotResponded
	}

	if err := s.store.PlaceOrder(ctx, r.ID, s.now()); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return ErrRFQClosed
		}
		return fmt.Errorf("place order: %w", err)
	}

	s.log.Info("RFQ ordered", zap.String("rfq_id", r.ID), zap.String("procurement_id", r.ProcurementID))
	s.publish(ctx, r.VendorID, events.Modify, s.reload(ctx, r))
	return nil
}

// View строит проекцию RFQ без изменения состояния
func (s *Service) View(ctx context.Context, token string, internal bool) (*QuoteView, error) {
	r, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	lines, err := s.store.GetQuoteLines(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load quote lines: %w", err)
	}

	view := &QuoteView{
		RFQID:        r.ID,
		Date:         r.CreatedAt,
		Vendor:       r.VendorName,
		Status:       r.Status,
		ResponseTime: r.ResponseTime,
		Items:        make([]ViewLine, 0, len(lines)),
		Total:        decimal.Zero,
		Mode:         ModeSubmit,
		Editable:     r.Status == models.RFQEnabled,
	}
	if internal {
		view.Mode = ModeEdit
	}
	for _, l := range lines {
		sub := l.Subtotal()
		view.Items = append(view.Items, ViewLine{QuoteLine: l, Subtotal: sub})
		view.Total = view.Total.Add(sub)
	}
	return view, nil
}

// List все RFQ с именами поставщиков
func (s *Service) List(ctx context.Context) ([]models.RFQ, error) {
	rfqs, err := s.store.ListRFQs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rfqs: %w", err)
	}
	return rfqs, nil
}

// Disable отзывает RFQ: токен перестает приниматься. Повторный вызов ничего не меняет.
func (s *Service) Disable(ctx context.Context, actorID, rfqID string) (err error) {
	defer func() { s.observe("disable", err) }()

	r, err := s.store.GetRFQ(ctx, rfqID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrRFQNotFound
		}
		return fmt.Errorf("load rfq: %w", err)
	}
	switch r.Status {
	case models.RFQDisabled:
		return nil
	case models.RFQOrdered:
		return ErrRFQClosed
	}

	if err := s.store.DisableRFQ(ctx, rfqID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return ErrRFQClosed
		}
		return fmt.Errorf("disable rfq: %w", err)
	}
	r.Status = models.RFQDisabled
	s.publish(ctx, actorID, events.Modify, *r)
	return nil
}

// resolve проверяет токен и состояние RFQ, на которое он указывает
func (s *Service) resolve(ctx context.Context, token string) (*models.RFQ, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	r, err := s.store.GetRFQ(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrRFQNotFound
		}
		return nil, fmt.Errorf("load rfq: %w", err)
	}
	if r.Status == models.RFQDisabled {
		return nil, ErrTokenRevoked
	}
	return r, nil
}

func (s *Service) reload(ctx context.Context, r *models.RFQ) models.RFQ {
	fresh, err := s.store.GetRFQ(ctx, r.ID)
	if err != nil {
		return *r
	}
	return *fresh
}

func (s *Service) publish(ctx context.Context, actorID string, change events.ChangeType, r models.RFQ) {
	err := s.publisher.Publish(ctx, events.Event{
		ActorID:      actorID,
		ChangeType:   change,
		ResourceType: events.ResourceRFQ,
		Payload:      r,
	})
	if err != nil {
		s.log.Warn("Failed to publish rfq change", zap.String("rfq_id", r.ID), zap.Error(err))
	}
}

func (s *Service) observe(transition string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	s.metrics.RFQTransitions.WithLabelValues(transition, result).Inc()
}

func (s *Service) countNotification(result string) {
	if s.metrics != nil {
		s.metrics.Notifications.WithLabelValues(result).Inc()
	}
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func missing[T any](want []string, got []T, key func(T) string) string {
	have := make(map[string]bool, len(got))
	for _, g := range got {
		have[key(g)] = true
	}
	var out []string
	for _, w := range want {
		if !have[w] {
			out = append(out, w)
		}
	}
	return "items not in procurement: " + strings.Join(out, ", ")
}
