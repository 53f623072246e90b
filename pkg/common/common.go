package common

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrNationalIDExists   = errors.New("national ID is already registered")
	ErrMemberNotVerified  = errors.New("member is not verified")
	ErrLoanNotFound       = errors.New("loan application not found")
	ErrNgumbatoNotFound   = errors.New("ngumbato record not found")
	ErrInvalidCredentials = errors.New("invalid national ID or password")
	ErrInvalidTransition  = errors.New("loan status transition not allowed")
)

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func SuccessResponse(c *fiber.Ctx, statusCode int, data any) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

func ErrorResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  "error",
		"message": message,
	})
}
