package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound возвращается хранилищем, когда запись отсутствует
	ErrNotFound = errors.New("record not found")
	// ErrConflict возвращается, когда условное обновление не нашло запись в ожидаемом состоянии
	ErrConflict = errors.New("record state changed")
)

// Границы строк закупки и котировки: INT и NUMERIC(10, 2) в схеме
const MaxQuantity = math.MaxInt32

var MaxUnitPrice = decimal.RequireFromString("99999999.99")

// CheckLine проверяет, что количество и цену можно сохранить без переполнения и округления
func CheckLine(quantity int, price decimal.Decimal) error {
	if quantity < 0 || quantity > MaxQuantity {
		return fmt.Errorf("quantity must be between 0 and %d", MaxQuantity)
	}
	if price.IsNegative() || price.GreaterThan(MaxUnitPrice) {
		return fmt.Errorf("unit price must be between 0 and %s", MaxUnitPrice.StringFixed(2))
	}
	if !price.Equal(price.Round(2)) {
		return errors.New("unit price must have at most 2 decimal places")
	}
	return nil
}

// Статусы RFQ
type RFQStatus string

const (
	RFQEnabled  RFQStatus = "ENABLED"
	RFQDisabled RFQStatus = "DISABLED"
	RFQOrdered  RFQStatus = "ORDERED"
)

// Terminal сообщает, что из статуса больше нет переходов
func (s RFQStatus) Terminal() bool {
	return s == RFQOrdered || s == RFQDisabled
}

// Сущность Закупки
type Procurement struct {
	ID        string    `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"date"`
}

// Строка закупки: пара (закупка, товар) с согласуемыми количеством и ценой
type ProcurementItem struct {
	ProcurementID string          `db:"procurement_id" json:"procurement_id"`
	ItemID        string          `db:"item_id" json:"item_id"`
	ItemName      string          `db:"item_name" json:"name"`
	CategoryID    int             `db:"category_id" json:"category_id"`
	Category      string          `db:"category_name" json:"category"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Сводка по закупке для списка
type ProcurementSummary struct {
	Procurement
	Items       []ProcurementItem `json:"items"`
	RFQTotal    int               `db:"rfq_total" json:"rfq_total"`
	RFQComplete int               `db:"rfq_complete" json:"rfq_complete"`
}

// Сущность RFQ (запрос котировок поставщику)
type RFQ struct {
	ID            string     `db:"id" json:"id"`
	CreatedAt     time.Time  `db:"created_at" json:"date"`
	Token         string     `db:"token" json:"token"`
	ResponseTime  *time.Time `db:"response_time" json:"response_time"`
	Status        RFQStatus  `db:"status" json:"status"`
	ProcurementID string     `db:"procurement_id" json:"procurement_id"`
	VendorID      string     `db:"vendor_id" json:"vendor_id"`
	VendorName    string     `db:"vendor_name" json:"vendor_name"`
	VendorEmail   string     `db:"vendor_email" json:"-"`
}

// Responded сообщает, ответил ли поставщик
func (r *RFQ) Responded() bool {
	return r.ResponseTime != nil
}

// Строка котировки, принадлежащая конкретному RFQ
type QuoteLine struct {
	RFQID         string          `db:"rfq_id" json:"-"`
	ProcurementID string          `db:"procurement_id" json:"-"`
	ItemID        string          `db:"item_id" json:"item_id"`
	ItemName      string          `db:"item_name" json:"item_name"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Subtotal = цена * количество
func (l QuoteLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Сущность Поставщика
type Vendor struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Email      string     `db:"email" json:"email"`
	Address    string     `db:"address" json:"address"`
	Approved   bool       `db:"approved" json:"approved"`
	Gred       float64    `db:"gred" json:"gred"`
	Categories []Category `json:"categories"`
	Reviews    []Review   `json:"reviews,omitempty"`
}

// Rated: -1 означает, что оценка ещё не посчитана
func (v *Vendor) Rated() bool {
	return v.Gred >= 0
}

// Сущность Отзыва о поставщике
type Review struct {
	ID       string    `db:"id" json:"id"`
	VendorID string    `db:"vendor_id" json:"vendor_id"`
	Rating   float64   `db:"rating" json:"rating"`
	Caption  string    `db:"caption" json:"caption"`
	Date     time.Time `db:"date" json:"date"`
}

// Сущность Категории
type Category struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Сущность Товара
type Item struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Photo        *string   `db:"photo" json:"photo"`
	LastUpdate   time.Time `db:"last_update" json:"last_update"`
	CategoryID   int       `db:"category_id" json:"category_id"`
	CategoryName string    `db:"category_name" json:"category"`
}
