package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
)

// AuthService defines the interface for account registration and login.
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, *models.TokenPair, *ServiceError)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, *models.TokenPair, *ServiceError)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *ServiceError)
	GetMe(ctx context.Context, userID uuid.UUID) (*models.User, *ServiceError)
}

// authServiceImpl implements AuthService.
type authServiceImpl struct {
	users     repository.UserRepository
	customers repository.CustomerRepository
	tx        database.Transactor
	tokens    TokenIssuer
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repository.UserRepository,
	customers repository.CustomerRepository,
	tx database.Transactor,
	tokens TokenIssuer,
	logger *zap.Logger,
) AuthService {
	return &authServiceImpl{
		users:     users,
		customers: customers,
		tx:        tx,
		tokens:    tokens,
		logger:    logger,
	}
}

// Register creates a customer account: the user row and its 1:1 customer
// profile commit together or not at all.
func (s *authServiceImpl) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, *models.TokenPair, *ServiceError) {
	var svcErr *ServiceError
	var user *models.User

	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		customers := s.customers.WithTx(tx)

		if _, err := users.FindByEmail(ctx, req.Email); err == nil {
			svcErr = &ServiceError{StatusCode: 409, Message: "Email already registered"}
			return svcErr
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if _, err := users.FindByUsername(ctx, req.Username); err == nil {
			svcErr = &ServiceError{StatusCode: 409, Message: "Username already taken"}
			return svcErr
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user = &models.User{
			Email:        req.Email,
			Username:     req.Username,
			PasswordHash: string(hash),
			Role:         models.RoleCustomer,
			IsActive:     true,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}

		customer := &models.Customer{
			UserID:    user.ID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		}
		return customers.Create(ctx, customer)
	})
	if svcErr != nil {
		return nil, nil, svcErr
	}
	if err != nil {
		s.logger.Error("Failed to register user", zap.Error(err))
		return nil, nil, &ServiceError{StatusCode: 500, Message: "Failed to register user"}
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID.String(), user.Email, user.Role)
	if err != nil {
		s.logger.Error("Failed to issue tokens", zap.Error(err))
		return nil, nil, &ServiceError{StatusCode: 500, Message: "Failed to issue tokens"}
	}

	s.logger.Info("User registered", zap.String("email", user.Email))
	return user, pair, nil
}

// Login verifies credentials and issues a token pair. The error message
// never reveals whether the email or the password was wrong.
func (s *authServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (*models.User, *models.TokenPair, *ServiceError) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &ServiceError{StatusCode: 401, Message: "Invalid email or password"}
		}
		s.logger.Error("Failed to look up user", zap.Error(err))
		return nil, nil, &ServiceError{StatusCode: 500, Message: "Failed to log in"}
	}

	if !user.IsActive {
		return nil, nil, &ServiceError{StatusCode: 403, Message: "Account is deactivated"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, &ServiceError{StatusCode: 401, Message: "Invalid email or password"}
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID.String(), user.Email, user.Role)
	if err != nil {
		s.logger.Error("Failed to issue tokens", zap.Error(err))
		return nil, nil, &ServiceError{StatusCode: 500, Message: "Failed to issue tokens"}
	}

	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The user is
// re-read so role or deactivation changes apply on rotation.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *ServiceError) {
	claims, err := s.tokens.ValidateToken(refreshToken, "refresh")
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid or expired refresh token"}
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid or expired refresh token"}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 401, Message: "Invalid or expired refresh token"}
	}
	if !user.IsActive {
		return nil, &ServiceError{StatusCode: 403, Message: "Account is deactivated"}
	}

	pair, err := s.tokens.GenerateTokenPair(user.ID.String(), user.Email, user.Role)
	if err != nil {
		s.logger.Error("Failed to issue tokens", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to issue tokens"}
	}
	return pair, nil
}

// GetMe returns the authenticated user's account.
func (s *authServiceImpl) GetMe(ctx context.Context, userID uuid.UUID) (*models.User, *ServiceError) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "User not found"}
		}
		s.logger.Error("Failed to look up user", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to look up user"}
	}
	return user, nil
}
