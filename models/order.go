package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// IsValid reports whether s is a member of the status set.
func (s OrderStatus) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// statusTransitions is the authoritative legal-edge table for order status
// changes: current state → allowed next states. Same-state transitions are
// illegal, refunded is terminal, and cancelled/delivered remain refundable.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {OrderStatusRefunded},
	OrderStatusRefunded:   {},
}

// CanTransitionTo reports whether next is a legal edge from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range statusTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal targets from s, for error messages.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	out := make([]OrderStatus, len(statusTransitions[s]))
	copy(out, statusTransitions[s])
	return out
}

// StockRestoring reports whether moving from s into next returns the
// order's line quantities to product stock. True only when entering
// cancelled or refunded from a state that has not already restored stock,
// so a cancel-then-refund never restores twice.
func (s OrderStatus) StockRestoring(next OrderStatus) bool {
	if next != OrderStatusCancelled && next != OrderStatusRefunded {
		return false
	}
	return s != OrderStatusCancelled && s != OrderStatusRefunded
}

// StatusTargetsForRole returns the statuses a staff role may drive an order
// into, independent of which edges the transition table permits. Cashiers
// handle intake, managers everything short of money-back, admins all.
func StatusTargetsForRole(role Role) []OrderStatus {
	switch role {
	case RoleAdmin:
		return []OrderStatus{
			OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
			OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
		}
	case RoleManager:
		return []OrderStatus{
			OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
			OrderStatusDelivered, OrderStatusCancelled,
		}
	case RoleCashier:
		return []OrderStatus{OrderStatusConfirmed, OrderStatusProcessing}
	}
	return nil
}

// RoleMaySetStatus reports whether role may drive an order into target.
func RoleMaySetStatus(role Role, target OrderStatus) bool {
	for _, t := range StatusTargetsForRole(role) {
		if t == target {
			return true
		}
	}
	return false
}

// PaymentStatus tracks payment state independently of order status. The
// only coupling is refund processing, which sets both together.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid reports whether p is a member of the payment-status set.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is a recorded label; no gateway integration exists.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid reports whether m is a member of the payment-method set.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal,
		PaymentMethodCash, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// Order is created atomically from a cart snapshot. After creation only
// status, payment status, lifecycle timestamps, notes and tracking number
// change; totals, line items and the shipping address are frozen. The
// shipping address is copied by value, never a reference to a mutable
// address row. ConfirmedAt/ShippedAt/DeliveredAt are each stamped at most
// once and never overwritten.
type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	PaymentMethod *PaymentMethod  `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	ShippingCost  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping_cost"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`

	ShippingAddressLine1 string `gorm:"type:varchar(255);not null" json:"shipping_address_line1"`
	ShippingAddressLine2 string `gorm:"type:varchar(255)" json:"shipping_address_line2,omitempty"`
	ShippingCity         string `gorm:"type:varchar(120);not null" json:"shipping_city"`
	ShippingState        string `gorm:"type:varchar(120);not null" json:"shipping_state"`
	ShippingPostalCode   string `gorm:"type:varchar(20);not null" json:"shipping_postal_code"`
	ShippingCountry      string `gorm:"type:varchar(80);not null" json:"shipping_country"`

	CustomerNotes  string `gorm:"type:text" json:"customer_notes,omitempty"`
	AdminNotes     string `gorm:"type:text" json:"admin_notes,omitempty"`
	TrackingNumber string `gorm:"type:varchar(128)" json:"tracking_number,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem is a write-once snapshot of a product at order time. Name, SKU
// and unit price are copied by value so later catalog edits never change
// order history.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	ProductSKU  string          `gorm:"type:varchar(64);not null" json:"product_sku"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_price"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ShippingAddress is the checkout address input, copied verbatim onto the
// order row.
type ShippingAddress struct {
	Line1      string `json:"line1" binding:"required,max=255"`
	Line2      string `json:"line2" binding:"max=255"`
	City       string `json:"city" binding:"required,max=120"`
	State      string `json:"state" binding:"required,max=120"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,max=80"`
}

// CreateOrderRequest is the checkout payload.
type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" binding:"required"`
	PaymentMethod   *PaymentMethod  `json:"payment_method" binding:"omitempty,oneof=credit_card debit_card paypal cash bank_transfer"`
	CustomerNotes   string          `json:"customer_notes"`
}

// UpdateOrderStatusRequest drives the status state machine.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
}

// UpdatePaymentStatusRequest sets the independent payment state.
type UpdatePaymentStatusRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" binding:"required,oneof=pending paid failed refunded"`
}

// ShipOrderRequest marks an order shipped, optionally with a tracking number.
type ShipOrderRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"max=128"`
}

// AdminNotesRequest attaches internal notes to an order.
type AdminNotesRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}

// RefundOrderRequest processes a refund; the reason lands in admin notes.
type RefundOrderRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// OrderListFilter narrows staff order listings.
type OrderListFilter struct {
	Status        *OrderStatus
	PaymentStatus *PaymentStatus
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

// OrderEvent is published to SNS on order lifecycle changes.
type OrderEvent struct {
	EventType   string    `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  string    `json:"customer_id"`
	Status      string    `json:"status"`
	Total       string    `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}
