package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/cache"
	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	aws_pkg "github.com/yashrajoria/storefront/pkg/aws"
	"github.com/yashrajoria/storefront/repository"
)

// orderNumberAttempts bounds retries when a generated order number collides
// with an existing one.
const orderNumberAttempts = 5

// OrderService defines the interface for checkout and order lifecycle
// management.
type OrderService interface {
	CreateOrderFromCart(ctx context.Context, userID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, *ServiceError)
	GetOrder(ctx context.Context, orderID, userID uuid.UUID, role models.Role) (*models.Order, *ServiceError)
	GetOrderByNumber(ctx context.Context, orderNumber string, userID uuid.UUID, role models.Role) (*models.Order, *ServiceError)
	GetCustomerOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, *ServiceError)
	CancelMyOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, *ServiceError)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actorRole models.Role) (*models.Order, *ServiceError)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, target models.PaymentStatus, actorRole models.Role) (*models.Order, *ServiceError)
	ShipOrder(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*models.Order, *ServiceError)
	RefundOrder(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, *ServiceError)
	SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) (*models.Order, *ServiceError)
	ListAll(ctx context.Context, filter models.OrderListFilter, actorRole models.Role) ([]models.Order, int64, *ServiceError)
	ListToday(ctx context.Context) ([]models.Order, *ServiceError)
	SearchByOrderNumber(ctx context.Context, term string, page, limit int) ([]models.Order, int64, *ServiceError)
	HardDelete(ctx context.Context, orderID uuid.UUID) *ServiceError
}

// orderServiceImpl implements OrderService.
type orderServiceImpl struct {
	orders      repository.OrderRepository
	carts       repository.CartRepository
	products    repository.ProductRepository
	customers   repository.CustomerRepository
	tx          database.Transactor
	shipping    ShippingCalculator
	taxRate     decimal.Decimal
	cache       *cache.Cache
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	tx database.Transactor,
	shipping ShippingCalculator,
	taxRate decimal.Decimal,
	c *cache.Cache,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		orders:      orders,
		carts:       carts,
		products:    products,
		customers:   customers,
		tx:          tx,
		shipping:    shipping,
		taxRate:     taxRate,
		cache:       c,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

func (s *orderServiceImpl) resolveCustomer(ctx context.Context, userID uuid.UUID) (*models.Customer, *ServiceError) {
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Customer profile not found"}
		}
		s.logger.Error("Failed to resolve customer profile", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch customer profile"}
	}
	return customer, nil
}

// generateOrderNumber produces a short human-readable order number and
// retries on the rare collision with an existing one.
func (s *orderServiceImpl) generateOrderNumber(ctx context.Context, orders repository.OrderRepository) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		number := "ORD-" + strings.ToUpper(uuid.NewString()[:8])
		exists, err := orders.ExistsByOrderNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique order number after %d attempts", orderNumberAttempts)
}

// CreateOrderFromCart turns the customer's cart into an order. Stock
// re-validation, totals, order and item creation, stock decrements and the
// cart clear all happen in one transaction; any failure rolls everything
// back, leaving stock, cart and order tables untouched.
func (s *orderServiceImpl) CreateOrderFromCart(ctx context.Context, userID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	if req.PaymentMethod != nil && !req.PaymentMethod.IsValid() {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid payment method"}
	}

	var order *models.Order
	var productIDs []uuid.UUID

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		carts := s.carts.WithTx(tx)
		products := s.products.WithTx(tx)

		cart, err := carts.FindByCustomerID(ctx, customer.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 400, Message: "Cart is empty"}
				return errors.New(svcErr.Message)
			}
			return err
		}
		if len(cart.Items) == 0 {
			svcErr = &ServiceError{StatusCode: 400, Message: "Cart is empty"}
			return errors.New(svcErr.Message)
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(cart.Items))

		// Lock every product row up front, in a fixed order. The check and
		// the decrement must see the same stock value or two concurrent
		// checkouts can both pass the check and jointly oversell; the fixed
		// order keeps two checkouts sharing products from deadlocking on
		// each other's locks.
		sort.Slice(cart.Items, func(i, j int) bool {
			return bytes.Compare(cart.Items[i].ProductID[:], cart.Items[j].ProductID[:]) < 0
		})
		for _, line := range cart.Items {
			product, err := products.FindByIDForUpdate(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					svcErr = &ServiceError{StatusCode: 400, Message: "A product in the cart is no longer available"}
					return errors.New(svcErr.Message)
				}
				return err
			}
			if !product.IsActive {
				svcErr = &ServiceError{
					StatusCode: 400,
					Message:    fmt.Sprintf("Product '%s' is no longer available", product.Name),
				}
				return errors.New(svcErr.Message)
			}

			next, ok := applyStockOperation(product.StockQuantity, line.Quantity, models.StockSubtract)
			if !ok {
				svcErr = &ServiceError{
					StatusCode: 400,
					Message: fmt.Sprintf("Insufficient stock for '%s'. Only %d available, but cart has %d",
						product.Name, product.StockQuantity, line.Quantity),
				}
				return errors.New(svcErr.Message)
			}
			if err := products.UpdateStockQuantity(ctx, product.ID, next); err != nil {
				return err
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				ProductSKU:  product.SKU,
				UnitPrice:   product.Price,
				Quantity:    line.Quantity,
				TotalPrice:  lineTotal,
			})
			productIDs = append(productIDs, product.ID)
		}

		tax := subtotal.Mul(s.taxRate).Round(2)
		shippingCost := s.shipping.Cost(subtotal)
		total := subtotal.Add(tax).Add(shippingCost)

		orderNumber, err := s.generateOrderNumber(ctx, orders)
		if err != nil {
			return err
		}

		order = &models.Order{
			OrderNumber:   orderNumber,
			CustomerID:    customer.ID,
			Status:        models.OrderStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			PaymentMethod: req.PaymentMethod,
			Subtotal:      subtotal,
			TaxAmount:     tax,
			ShippingCost:  shippingCost,
			TotalAmount:   total,

			ShippingAddressLine1: req.ShippingAddress.Line1,
			ShippingAddressLine2: req.ShippingAddress.Line2,
			ShippingCity:         req.ShippingAddress.City,
			ShippingState:        req.ShippingAddress.State,
			ShippingPostalCode:   req.ShippingAddress.PostalCode,
			ShippingCountry:      req.ShippingAddress.Country,

			CustomerNotes: req.CustomerNotes,
			Items:         items,
		}
		if err := orders.Create(ctx, order); err != nil {
			return err
		}

		return carts.DeleteItems(ctx, cart.ID)
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Checkout failed",
			zap.String("customer_id", customer.ID.String()),
			zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create order"}
	}

	s.invalidateProducts(ctx, productIDs)
	s.publishOrderEvent(ctx, "order.created", order)

	s.logger.Info("Order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_id", customer.ID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)))
	return order, nil
}

// GetOrder returns an order. Customers only see their own; staff roles see
// any order by id.
func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID, userID uuid.UUID, role models.Role) (*models.Order, *ServiceError) {
	if role == models.RoleCustomer {
		customer, svcErr := s.resolveCustomer(ctx, userID)
		if svcErr != nil {
			return nil, svcErr
		}
		order, err := s.orders.FindByIDAndCustomer(ctx, orderID, customer.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
			}
			s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
		}
		return order, nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}
	return order, nil
}

// GetOrderByNumber returns an order by its human-readable number, with the
// same ownership rules as GetOrder.
func (s *orderServiceImpl) GetOrderByNumber(ctx context.Context, orderNumber string, userID uuid.UUID, role models.Role) (*models.Order, *ServiceError) {
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_number", orderNumber), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}

	if role == models.RoleCustomer {
		customer, svcErr := s.resolveCustomer(ctx, userID)
		if svcErr != nil {
			return nil, svcErr
		}
		if order.CustomerID != customer.ID {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
	}
	return order, nil
}

// GetCustomerOrders returns the caller's own order history, newest first.
func (s *orderServiceImpl) GetCustomerOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, 0, svcErr
	}

	page, limit = normalizePagination(page, limit)
	orders, total, err := s.orders.FindByCustomer(ctx, customer.ID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list customer orders", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}
	return orders, total, nil
}

// transitionLocked applies a status change inside an open transaction:
// legal-edge check, stock restoration when entering cancelled/refunded,
// one-shot timestamp stamping and the row update. The order row is read
// under an exclusive lock so concurrent transitions serialize and stock
// restoration cannot run twice. Callers own role gating.
func (s *orderServiceImpl) transitionLocked(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target models.OrderStatus, affected *[]uuid.UUID) (*models.Order, *ServiceError) {
	orders := s.orders.WithTx(tx)
	products := s.products.WithTx(tx)

	order, err := orders.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}

	if !order.Status.CanTransitionTo(target) {
		return nil, &ServiceError{
			StatusCode: 409,
			Message:    fmt.Sprintf("Cannot transition order from %s to %s", order.Status, target),
		}
	}

	if order.Status.StockRestoring(target) {
		for _, item := range order.Items {
			product, err := products.FindByIDForUpdate(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// Product hard-deleted after the order; nothing to restore to.
					continue
				}
				s.logger.Error("Failed to lock product for stock restore",
					zap.String("product_id", item.ProductID.String()), zap.Error(err))
				return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order status"}
			}
			next, _ := applyStockOperation(product.StockQuantity, item.Quantity, models.StockAdd)
			if err := products.UpdateStockQuantity(ctx, product.ID, next); err != nil {
				s.logger.Error("Failed to restore stock",
					zap.String("product_id", product.ID.String()), zap.Error(err))
				return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order status"}
			}
			if affected != nil {
				*affected = append(*affected, product.ID)
			}
		}
	}

	order.Status = target
	stampStatusTimestamp(order, target, time.Now().UTC())

	if err := orders.Update(ctx, order); err != nil {
		s.logger.Error("Failed to update order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order status"}
	}
	return order, nil
}

// stampStatusTimestamp records when an order first reached confirmed,
// shipped or delivered. Each timestamp is written once and never
// overwritten on a repeat visit.
func stampStatusTimestamp(order *models.Order, status models.OrderStatus, now time.Time) {
	switch status {
	case models.OrderStatusConfirmed:
		if order.ConfirmedAt == nil {
			order.ConfirmedAt = &now
		}
	case models.OrderStatusShipped:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case models.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	}
}

// UpdateStatus drives the order status state machine on behalf of a staff
// actor. The role gate runs before the transition table so a forbidden
// target reads as 403 even when the edge itself would be illegal.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actorRole models.Role) (*models.Order, *ServiceError) {
	if !target.IsValid() {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid status"}
	}
	if !models.RoleMaySetStatus(actorRole, target) {
		return nil, roleStatusError(actorRole)
	}

	var order *models.Order
	var svcErr *ServiceError
	var affected []uuid.UUID

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		order, svcErr = s.transitionLocked(ctx, tx, orderID, target, &affected)
		if svcErr != nil {
			return errors.New(svcErr.Message)
		}
		return nil
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Failed to update order status", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update order status"}
	}

	s.invalidateProducts(ctx, affected)
	s.publishOrderEvent(ctx, "order.status_changed", order)
	return order, nil
}

// roleStatusError explains which targets a role may set.
func roleStatusError(role models.Role) *ServiceError {
	targets := models.StatusTargetsForRole(role)
	if len(targets) == 0 {
		return &ServiceError{StatusCode: 403, Message: "You do not have permission to update order status"}
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = string(t)
	}
	return &ServiceError{
		StatusCode: 403,
		Message:    fmt.Sprintf("Your role can only update status to: %s", strings.Join(names, ", ")),
	}
}

// CancelMyOrder is the customer-initiated cancellation. Delivered,
// cancelled and refunded orders are past the point of self-service
// cancellation and must go through a staff refund instead.
func (s *orderServiceImpl) CancelMyOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	var order *models.Order
	var affected []uuid.UUID

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)

		existing, err := orders.FindByIDAndCustomer(ctx, orderID, customer.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Order not found"}
				return errors.New(svcErr.Message)
			}
			return err
		}

		switch existing.Status {
		case models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded:
			svcErr = &ServiceError{
				StatusCode: 400,
				Message:    fmt.Sprintf("Cannot cancel order with status: %s", existing.Status),
			}
			return errors.New(svcErr.Message)
		}

		order, svcErr = s.transitionLocked(ctx, tx, orderID, models.OrderStatusCancelled, &affected)
		if svcErr != nil {
			return errors.New(svcErr.Message)
		}
		return nil
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Failed to cancel order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to cancel order"}
	}

	s.invalidateProducts(ctx, affected)
	s.publishOrderEvent(ctx, "order.cancelled", order)
	return order, nil
}

// ShipOrder marks an order shipped and records the tracking number in the
// same transaction.
func (s *orderServiceImpl) ShipOrder(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*models.Order, *ServiceError) {
	var order *models.Order
	var svcErr *ServiceError

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		order, svcErr = s.transitionLocked(ctx, tx, orderID, models.OrderStatusShipped, nil)
		if svcErr != nil {
			return errors.New(svcErr.Message)
		}
		if trackingNumber != "" {
			order.TrackingNumber = trackingNumber
			if err := s.orders.WithTx(tx).Update(ctx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Failed to mark order shipped", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to mark order as shipped"}
	}

	s.publishOrderEvent(ctx, "order.status_changed", order)
	return order, nil
}

// RefundOrder processes a full refund: order status and payment status move
// to refunded together, stock is restored once, and the reason is appended
// to the admin notes, all in one transaction.
func (s *orderServiceImpl) RefundOrder(ctx context.Context, orderID uuid.UUID, reason string) (*models.Order, *ServiceError) {
	if reason == "" {
		reason = "Customer request"
	}

	var order *models.Order
	var svcErr *ServiceError
	var affected []uuid.UUID

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		order, svcErr = s.transitionLocked(ctx, tx, orderID, models.OrderStatusRefunded, &affected)
		if svcErr != nil {
			return errors.New(svcErr.Message)
		}

		order.PaymentStatus = models.PaymentStatusRefunded
		order.AdminNotes = appendAdminNote(order.AdminNotes, fmt.Sprintf("REFUND PROCESSED: %s", reason))
		if err := s.orders.WithTx(tx).Update(ctx, order); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Failed to process refund", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to process refund"}
	}

	s.invalidateProducts(ctx, affected)
	s.publishOrderEvent(ctx, "order.refunded", order)
	return order, nil
}

// UpdatePaymentStatus sets the payment state. Setting refunded, or moving
// off refunded, is reserved for admins; there is no edge table for payment
// states beyond that.
func (s *orderServiceImpl) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, target models.PaymentStatus, actorRole models.Role) (*models.Order, *ServiceError) {
	if !target.IsValid() {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid payment status"}
	}
	if target == models.PaymentStatusRefunded && actorRole != models.RoleAdmin {
		return nil, &ServiceError{StatusCode: 403, Message: "Only admins can set payment status to refunded"}
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}

	if order.PaymentStatus == models.PaymentStatusRefunded && target != models.PaymentStatusRefunded && actorRole != models.RoleAdmin {
		return nil, &ServiceError{StatusCode: 403, Message: "Only admins can reverse a refunded payment status"}
	}

	order.PaymentStatus = target
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Error("Failed to update payment status", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update payment status"}
	}

	s.publishOrderEvent(ctx, "order.payment_status_changed", order)
	return order, nil
}

// SetAdminNotes appends timestamped internal notes to an order.
func (s *orderServiceImpl) SetAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) (*models.Order, *ServiceError) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}

	order.AdminNotes = appendAdminNote(order.AdminNotes, notes)
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Error("Failed to update admin notes", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to add notes"}
	}
	return order, nil
}

// appendAdminNote stacks notes with a UTC timestamp so the trail reads in
// order.
func appendAdminNote(existing, note string) string {
	stamped := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), note)
	if existing == "" {
		return stamped
	}
	return existing + "\n" + stamped
}

// ListAll is the staff order listing. Managers are limited to the last 30
// days; admins see everything.
func (s *orderServiceImpl) ListAll(ctx context.Context, filter models.OrderListFilter, actorRole models.Role) ([]models.Order, int64, *ServiceError) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, &ServiceError{StatusCode: 400, Message: "Invalid status"}
	}
	if filter.PaymentStatus != nil && !filter.PaymentStatus.IsValid() {
		return nil, 0, &ServiceError{StatusCode: 400, Message: "Invalid payment status"}
	}
	filter.Page, filter.Limit = normalizePagination(filter.Page, filter.Limit)

	if actorRole == models.RoleManager {
		windowStart := time.Now().UTC().AddDate(0, 0, -30)
		if filter.From == nil || filter.From.Before(windowStart) {
			filter.From = &windowStart
		}
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}
	return orders, total, nil
}

// ListToday returns orders created since UTC midnight, for daily staff
// operations.
func (s *orderServiceImpl) ListToday(ctx context.Context) ([]models.Order, *ServiceError) {
	orders, err := s.orders.ListToday(ctx)
	if err != nil {
		s.logger.Error("Failed to list today's orders", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch orders"}
	}
	return orders, nil
}

// SearchByOrderNumber finds orders whose number starts with the term, for
// quick staff lookup.
func (s *orderServiceImpl) SearchByOrderNumber(ctx context.Context, term string, page, limit int) ([]models.Order, int64, *ServiceError) {
	if strings.TrimSpace(term) == "" {
		return nil, 0, &ServiceError{StatusCode: 400, Message: "Order number is required"}
	}

	page, limit = normalizePagination(page, limit)
	orders, total, err := s.orders.SearchByOrderNumber(ctx, strings.TrimSpace(term), page, limit)
	if err != nil {
		s.logger.Error("Failed to search orders", zap.String("term", term), zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to search orders"}
	}
	return orders, total, nil
}

// HardDelete permanently removes an order. Only cancelled or refunded
// orders can go; everything else is live history.
func (s *orderServiceImpl) HardDelete(ctx context.Context, orderID uuid.UUID) *ServiceError {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}

	if order.Status != models.OrderStatusCancelled && order.Status != models.OrderStatusRefunded {
		return &ServiceError{StatusCode: 409, Message: "Only cancelled or refunded orders can be deleted"}
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		s.logger.Error("Failed to delete order", zap.String("order_id", orderID.String()), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to delete order"}
	}

	s.logger.Info("Order permanently deleted",
		zap.String("order_id", orderID.String()),
		zap.String("order_number", order.OrderNumber))
	return nil
}

// publishOrderEvent marshals an order lifecycle event and publishes it to
// SNS (non-fatal on error).
func (s *orderServiceImpl) publishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}
	event := models.OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID.String(),
		Status:      string(order.Status),
		Total:       order.TotalAmount.StringFixed(2),
		Timestamp:   time.Now().UTC(),
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal order event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, b); err != nil {
		s.logger.Error("Failed to publish order event", zap.Error(err))
		return
	}
	s.logger.Info("Published order event",
		zap.String("event_type", eventType),
		zap.String("order_number", order.OrderNumber))
}

// invalidateProducts drops cached product entries after stock changes.
func (s *orderServiceImpl) invalidateProducts(ctx context.Context, ids []uuid.UUID) {
	for _, id := range ids {
		s.cache.Delete(ctx, cache.ProductKey(id.String()))
	}
}

// normalizePagination applies the shared paging defaults and caps.
func normalizePagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
