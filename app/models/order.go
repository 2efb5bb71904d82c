package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/money"
)

// Order statuses. Only pending is assigned here; fulfilment is external.
const OrderStatusPending = "pending"

// Ledger entry types.
const (
	LedgerTypeOrder   = "order"
	LedgerTypeRestock = "restock"
)

// Customer is keyed by email; repeat purchasers update their contact fields.
type Customer struct {
	Base
	Email    string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FullName string `gorm:"size:255;not null"             json:"full_name"`
	Phone    string `gorm:"size:64"                       json:"phone"`
	Address  string `gorm:"type:text"                     json:"address"`
}

// Order is the checkout header. Contact fields are copied from the customer
// at order time.
type Order struct {
	Base
	OrderNumber    string       `gorm:"size:32;not null;index"                json:"order_number"`
	CustomerID     string       `gorm:"type:varchar(36);not null;index"       json:"customer_id"`
	UserID         *string      `gorm:"size:255;index"                        json:"user_id"`
	FullName       string       `gorm:"size:255;not null"                     json:"customer_name"`
	Email          string       `gorm:"size:255;not null"                     json:"email"`
	Phone          string       `gorm:"size:64"                               json:"phone"`
	Address        string       `gorm:"type:text"                             json:"address"`
	Subtotal       money.Amount `gorm:"not null"                              json:"subtotal"`
	ShippingFee    money.Amount `gorm:"not null"                              json:"shipping_fee"`
	TotalAmount    money.Amount `gorm:"not null"                              json:"total_amount"`
	Currency       string       `gorm:"size:8;not null"                       json:"currency"`
	Status         string       `gorm:"size:32;not null;default:pending"      json:"status"`
	IdempotencyKey *string      `gorm:"size:255;uniqueIndex"                  json:"-"`
	RequestHash    *string      `gorm:"size:64"                               json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// BeforeCreate assigns the id and a human-readable order number.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if err := o.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if o.OrderNumber == "" {
		o.OrderNumber = NewOrderNumber(time.Now())
	}
	return nil
}

// OwnedBy reports whether userID placed the order while signed in.
func (o Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID != nil && *o.UserID == userID
}

// Redacted drops the customer's identity and contact fields.
func (o Order) Redacted() Order {
	o.CustomerID, o.UserID = "", nil
	o.FullName, o.Email, o.Phone, o.Address = "", "", "", ""
	return o
}

// NewOrderNumber returns e.g. "ORD-20261015-1A2B3C4D".
func NewOrderNumber(at time.Time) string {
	id := uuid.New()
	const hex = "0123456789ABCDEF"
	suffix := make([]byte, 8)
	for i := 0; i < 4; i++ {
		suffix[i*2] = hex[id[i]>>4]
		suffix[i*2+1] = hex[id[i]&0x0f]
	}
	return "ORD-" + at.UTC().Format("20060102") + "-" + string(suffix)
}

// OrderItem is one order line. Price is the unit price at purchase time and
// is never rewritten.
type OrderItem struct {
	ID        string       `gorm:"type:varchar(36);primaryKey"     json:"id"`
	OrderID   string       `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID string       `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Size      string       `gorm:"size:16;not null"                json:"size"`
	Quantity  int          `gorm:"not null"                        json:"quantity"`
	Price     money.Amount `gorm:"not null"                        json:"price"`
	CreatedAt time.Time    `json:"created_at"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// LineTotal is Price × Quantity.
func (i OrderItem) LineTotal() money.Amount { return i.Price.Mul(i.Quantity) }

// LedgerEntry is an append-only inventory audit row. Order entries carry the
// order and item ids; restock entries carry neither and a signed quantity.
type LedgerEntry struct {
	ID          string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductID   string       `gorm:"type:varchar(36);not null;index" json:"product_id"`
	OrderID     *string      `gorm:"type:varchar(36);index"      json:"order_id"`
	OrderItemID *string      `gorm:"type:varchar(36);index"      json:"order_item_id"`
	Type        string       `gorm:"size:16;not null"            json:"type"`
	Size        string       `gorm:"size:16"                     json:"size,omitempty"`
	Quantity    int          `gorm:"not null"                    json:"quantity"`
	TotalPrice  money.Amount `gorm:"not null"                    json:"total_price"`
	CreatedAt   time.Time    `gorm:"index"                       json:"created_at"`
}

func (LedgerEntry) TableName() string { return "transactions" }

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
