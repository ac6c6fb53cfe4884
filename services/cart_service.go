package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
)

// maxQuantityPerItem caps a single cart line. Carts are a wishlist, not a
// stock hold, so the cap bounds worst-case checkout contention per line.
const maxQuantityPerItem = 100

// CartService defines the interface for shopping cart operations. Every
// operation is keyed by the authenticated user and resolves their customer
// profile first.
type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, *ServiceError)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.Cart, *ServiceError)
	UpdateItemQuantity(ctx context.Context, userID uuid.UUID, productID uuid.UUID, quantity int) (*models.Cart, *ServiceError)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.Cart, *ServiceError)
	ClearCart(ctx context.Context, userID uuid.UUID) (*models.Cart, *ServiceError)
	ValidateForCheckout(ctx context.Context, userID uuid.UUID) (bool, string, *ServiceError)
}

// cartServiceImpl implements CartService.
type cartServiceImpl struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	tx        database.Transactor
	logger    *zap.Logger
}

// NewCartService creates a new CartService.
func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	tx database.Transactor,
	logger *zap.Logger,
) CartService {
	return &cartServiceImpl{
		carts:     carts,
		products:  products,
		customers: customers,
		tx:        tx,
		logger:    logger,
	}
}

// resolveCustomer maps the authenticated user to their customer profile.
func (s *cartServiceImpl) resolveCustomer(ctx context.Context, userID uuid.UUID) (*models.Customer, *ServiceError) {
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

// getOrCreateCart returns the customer's cart, lazily creating an empty one.
// A concurrent create racing on the unique customer_id constraint is
// resolved by re-reading.
func (s *cartServiceImpl) getOrCreateCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.carts.FindByCustomerID(ctx, customerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &models.Cart{CustomerID: customerID}
	if createErr := s.carts.Create(ctx, cart); createErr != nil {
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return s.carts.FindByCustomerID(ctx, customerID)
		}
		return nil, createErr
	}
	return s.carts.FindByCustomerID(ctx, customerID)
}

// GetCart returns the customer's cart with items and product details,
// creating an empty cart on first access.
func (s *cartServiceImpl) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	cart, err := s.getOrCreateCart(ctx, customer.ID)
	if err != nil {
		s.logger.Error("Failed to fetch cart", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch cart"}
	}
	return cart, nil
}

// validateQuantity enforces the per-line quantity bounds shared by add and
// update.
func validateQuantity(quantity int) *ServiceError {
	if quantity < 1 {
		return &ServiceError{StatusCode: 400, Message: "Quantity must be at least 1"}
	}
	if quantity > maxQuantityPerItem {
		return &ServiceError{StatusCode: 400, Message: fmt.Sprintf("Maximum quantity per item is %d", maxQuantityPerItem)}
	}
	return nil
}

// AddItem adds a product to the cart or increments an existing line. The
// product row is locked for the duration of the stock check so two
// concurrent adds cannot jointly pass it. Stock itself is not decremented;
// that only happens at checkout.
func (s *cartServiceImpl) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddCartItemRequest) (*models.Cart, *ServiceError) {
	if svcErr := validateQuantity(req.Quantity); svcErr != nil {
		return nil, svcErr
	}

	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	cart, err := s.getOrCreateCart(ctx, customer.ID)
	if err != nil {
		s.logger.Error("Failed to fetch cart", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch cart"}
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		carts := s.carts.WithTx(tx)

		product, err := products.FindByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Product not found"}
				return err
			}
			return err
		}
		if !product.IsActive {
			svcErr = &ServiceError{StatusCode: 400, Message: "Product is not available"}
			return errors.New(svcErr.Message)
		}

		item, err := carts.FindItem(ctx, cart.ID, req.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if item != nil {
			newQuantity := item.Quantity + req.Quantity
			if newQuantity > product.StockQuantity {
				svcErr = &ServiceError{
					StatusCode: 400,
					Message: fmt.Sprintf("Cannot add %d. Cart already has %d. Only %d available in stock.",
						req.Quantity, item.Quantity, product.StockQuantity),
				}
				return errors.New(svcErr.Message)
			}
			if newQuantity > maxQuantityPerItem {
				svcErr = &ServiceError{StatusCode: 400, Message: fmt.Sprintf("Maximum %d items per product", maxQuantityPerItem)}
				return errors.New(svcErr.Message)
			}
			return carts.UpdateItemQuantity(ctx, item.ID, newQuantity)
		}

		if product.StockQuantity < req.Quantity {
			svcErr = &ServiceError{
				StatusCode: 400,
				Message:    fmt.Sprintf("Only %d item(s) available in stock", product.StockQuantity),
			}
			return errors.New(svcErr.Message)
		}
		return carts.CreateItem(ctx, &models.CartItem{
			CartID:    cart.ID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		})
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Failed to add item to cart",
			zap.String("customer_id", customer.ID.String()),
			zap.String("product_id", req.ProductID.String()),
			zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to add item to cart"}
	}

	return s.reloadCart(ctx, customer.ID)
}

// UpdateItemQuantity sets the quantity of an existing cart line under the
// same row-lock discipline as AddItem.
func (s *cartServiceImpl) UpdateItemQuantity(ctx context.Context, userID uuid.UUID, productID uuid.UUID, quantity int) (*models.Cart, *ServiceError) {
	if svcErr := validateQuantity(quantity); svcErr != nil {
		return nil, svcErr
	}

	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	cart, err := s.carts.FindByCustomerID(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Cart not found"}
		}
		s.logger.Error("Failed to fetch cart", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch cart"}
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		carts := s.carts.WithTx(tx)

		product, err := products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Product not found"}
				return err
			}
			return err
		}
		if product.StockQuantity < quantity {
			svcErr = &ServiceError{
				StatusCode: 400,
				Message:    fmt.Sprintf("Only %d item(s) available in stock", product.StockQuantity),
			}
			return errors.New(svcErr.Message)
		}

		item, err := carts.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = &ServiceError{StatusCode: 404, Message: "Item not in cart"}
				return err
			}
			return err
		}
		return carts.UpdateItemQuantity(ctx, item.ID, quantity)
	})
	if err != nil {
		if svcErr != nil {
			return nil, svcErr
		}
		s.logger.Error("Failed to update cart item",
			zap.String("customer_id", customer.ID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to update cart item"}
	}

	return s.reloadCart(ctx, customer.ID)
}

// RemoveItem deletes one line from the cart.
func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.Cart, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	cart, err := s.carts.FindByCustomerID(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Cart not found"}
		}
		s.logger.Error("Failed to fetch cart", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch cart"}
	}

	item, err := s.carts.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Item not in cart"}
		}
		s.logger.Error("Failed to fetch cart item", zap.String("cart_id", cart.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to remove item from cart"}
	}

	if err := s.carts.DeleteItem(ctx, item.ID); err != nil {
		s.logger.Error("Failed to delete cart item", zap.String("cart_id", cart.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to remove item from cart"}
	}

	return s.reloadCart(ctx, customer.ID)
}

// ClearCart removes every line from the customer's cart. Returns nil with
// no error when the customer has no cart.
func (s *cartServiceImpl) ClearCart(ctx context.Context, userID uuid.UUID) (*models.Cart, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	cart, err := s.carts.FindByCustomerID(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("Failed to fetch cart", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch cart"}
	}

	if err := s.carts.DeleteItems(ctx, cart.ID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("cart_id", cart.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to clear cart"}
	}

	return s.reloadCart(ctx, customer.ID)
}

// ValidateForCheckout is a non-mutating pre-flight for the checkout flow.
// Stock can drift between add-to-cart and checkout, so checkout re-validates
// under locks regardless; this gives the caller an early answer.
func (s *cartServiceImpl) ValidateForCheckout(ctx context.Context, userID uuid.UUID) (bool, string, *ServiceError) {
	customer, svcErr := s.resolveCustomer(ctx, userID)
	if svcErr != nil {
		return false, "", svcErr
	}

	cart, err := s.carts.FindByCustomerID(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "Cart is empty", nil
		}
		s.logger.Error("Failed to fetch cart", zap.String("customer_id", customer.ID.String()), zap.Error(err))
		return false, "", &ServiceError{StatusCode: 500, Message: "Failed to validate cart"}
	}
	if len(cart.Items) == 0 {
		return false, "Cart is empty", nil
	}

	for _, item := range cart.Items {
		product := item.Product
		if product == nil {
			continue
		}
		if !product.IsActive {
			return false, fmt.Sprintf("Product '%s' is no longer available", product.Name), nil
		}
		if product.StockQuantity < item.Quantity {
			return false, fmt.Sprintf("Insufficient stock for '%s'. Only %d available, but cart has %d",
				product.Name, product.StockQuantity, item.Quantity), nil
		}
	}
	return true, "", nil
}

// reloadCart re-reads the cart with items so callers always see the state
// after the mutation.
func (s *cartServiceImpl) reloadCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, *ServiceError) {
	cart, err := s.carts.FindByCustomerID(ctx, customerID)
	if err != nil {
		s.logger.Error("Failed to reload cart", zap.String("customer_id", customerID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch cart"}
	}
	return cart, nil
}
