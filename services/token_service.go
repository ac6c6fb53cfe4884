package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/yashrajoria/storefront/models"
)

// TokenIssuer abstracts token generation and validation for the auth
// service and middleware.
type TokenIssuer interface {
	GenerateTokenPair(userID, email string, role models.Role) (*models.TokenPair, error)
	ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error)
}

// TokenService is responsible for creating and validating JWTs.
type TokenService struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secretKey:  []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// GenerateTokenPair creates a new access and refresh token pair.
func (s *TokenService) GenerateTokenPair(userID, email string, role models.Role) (*models.TokenPair, error) {
	accessToken, err := s.generateToken(userID, email, role, "access", s.accessTTL, "")
	if err != nil {
		return nil, err
	}

	// unique token id (jti) so refresh tokens are distinguishable
	refreshToken, err := s.generateToken(userID, email, role, "refresh", s.refreshTTL, uuid.NewString())
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateToken parses and validates any given token string. When
// expectedType is non-empty the typ claim must match it, so access tokens
// cannot be replayed as refresh tokens or vice versa.
func (s *TokenService) ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secretKey, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// generateToken is an internal helper to create a specific token.
func (s *TokenService) generateToken(userID, email string, role models.Role, tokenType string, duration time.Duration, tokenID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  string(role),
		"typ":   tokenType,
		"exp":   time.Now().Add(duration).Unix(),
		"iat":   time.Now().Unix(),
	}
	if tokenType == "refresh" && tokenID != "" {
		claims["jti"] = tokenID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}
