package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// --- Helpers ---

type authEnv struct {
	users     *fakeUserRepo
	customers *fakeCustomerRepo
	tokens    *services.TokenService
	svc       services.AuthService
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	users := newFakeUserRepo()
	customers := newFakeCustomerRepo()
	tokens := services.NewTokenService("test-secret", 15*time.Minute, 7*24*time.Hour)

	svc := services.NewAuthService(users, customers, &fakeTransactor{}, tokens, logger)
	return &authEnv{users: users, customers: customers, tokens: tokens, svc: svc}
}

func registerReq() *models.RegisterRequest {
	return &models.RegisterRequest{
		Email:     "shopper@example.com",
		Username:  "shopper",
		Password:  "hunter2hunter2",
		FirstName: "Sam",
		LastName:  "Shopper",
	}
}

// --- Tests ---

func TestService_Register_CreatesUserAndProfile(t *testing.T) {
	env := newAuthEnv(t)

	user, pair, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "hunter2hunter2", user.PasswordHash)
	assert.NotEmpty(t, pair.AccessToken)

	customer, err := env.customers.FindByUserID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", customer.FirstName)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	env := newAuthEnv(t)

	_, _, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	req := registerReq()
	req.Username = "someone-else"
	_, _, svcErr = env.svc.Register(context.Background(), req)
	require.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
}

func TestService_Register_DuplicateUsername(t *testing.T) {
	env := newAuthEnv(t)

	_, _, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	req := registerReq()
	req.Email = "other@example.com"
	_, _, svcErr = env.svc.Register(context.Background(), req)
	require.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
}

func TestService_Login_Success(t *testing.T) {
	env := newAuthEnv(t)
	_, _, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	user, pair, svcErr := env.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "shopper@example.com",
		Password: "hunter2hunter2",
	})
	require.Nil(t, svcErr)
	assert.Equal(t, "shopper@example.com", user.Email)

	claims, err := env.tokens.ValidateToken(pair.AccessToken, "access")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims["sub"])
}

func TestService_Login_WrongPassword(t *testing.T) {
	env := newAuthEnv(t)
	_, _, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	_, _, svcErr = env.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "shopper@example.com",
		Password: "wrong-password",
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 401, svcErr.StatusCode)
	// Same message as unknown email, so the response never leaks which
	// half of the credentials was wrong.
	assert.Equal(t, "Invalid email or password", svcErr.Message)
}

func TestService_Login_UnknownEmail(t *testing.T) {
	env := newAuthEnv(t)

	_, _, svcErr := env.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 401, svcErr.StatusCode)
	assert.Equal(t, "Invalid email or password", svcErr.Message)
}

func TestService_Login_DeactivatedAccount(t *testing.T) {
	env := newAuthEnv(t)
	user, _, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	env.users.byID[user.ID].IsActive = false

	_, _, svcErr = env.svc.Login(context.Background(), &models.LoginRequest{
		Email:    "shopper@example.com",
		Password: "hunter2hunter2",
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, 403, svcErr.StatusCode)
}

func TestService_Refresh_RotatesPair(t *testing.T) {
	env := newAuthEnv(t)
	_, pair, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	next, svcErr := env.svc.Refresh(context.Background(), pair.RefreshToken)
	require.Nil(t, svcErr)
	assert.NotEmpty(t, next.AccessToken)
	assert.NotEmpty(t, next.RefreshToken)
}

func TestService_Refresh_AccessTokenRejected(t *testing.T) {
	env := newAuthEnv(t)
	_, pair, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	_, svcErr = env.svc.Refresh(context.Background(), pair.AccessToken)
	require.NotNil(t, svcErr)
	assert.Equal(t, 401, svcErr.StatusCode)
}

func TestService_Refresh_DeactivatedAccountRejected(t *testing.T) {
	env := newAuthEnv(t)
	user, pair, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	env.users.byID[user.ID].IsActive = false

	_, svcErr = env.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NotNil(t, svcErr)
	assert.Equal(t, 403, svcErr.StatusCode)
}

func TestService_GetMe(t *testing.T) {
	env := newAuthEnv(t)
	user, _, svcErr := env.svc.Register(context.Background(), registerReq())
	require.Nil(t, svcErr)

	got, svcErr := env.svc.GetMe(context.Background(), user.ID)
	require.Nil(t, svcErr)
	assert.Equal(t, user.Email, got.Email)

	_, svcErr = env.svc.GetMe(context.Background(), uuid.New())
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}
