package serverutils

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"ai-helpdesk-be/pkg/rag/session"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Message string `validate:"required,min=1,max=5"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{Message: "hi"}))

	err := ValidateRequest(sampleRequest{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "message is required")

	err = ValidateRequest(sampleRequest{Message: "too long"})
	assert.Contains(t, err.Error(), "message must be at most 5")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: empty", session.ErrInvalidInput), fiber.StatusBadRequest},
		{fmt.Errorf("%w: bad", ErrValidation), fiber.StatusBadRequest},
		{session.ErrSessionNotFound, fiber.StatusNotFound},
		{fiber.ErrUnauthorized, fiber.StatusUnauthorized},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestErrorHandlerMiddlewareHidesInternalErrors(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("db password leaked") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestJwtMiddleware(t *testing.T) {
	const secret = "test-secret"
	app := fiber.New()
	app.Use(JwtMiddleware(secret))
	app.Get("/me", func(ctx *fiber.Ctx) error { return ctx.SendString(UserID(ctx)) })

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-7",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	open := fiber.New()
	open.Use(JwtMiddleware(""))
	open.Get("/me", func(ctx *fiber.Ctx) error { return ctx.SendString(UserID(ctx)) })
	resp, err = open.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
