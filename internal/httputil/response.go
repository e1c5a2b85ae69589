package httputil

import "github.com/gofiber/fiber/v3"

// ErrorResponse is the body of every non-2xx JSON response: a stable machine
// code plus a human-readable message.
type ErrorResponse struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
}

// Success sends a 200 JSON response with the given data.
func Success(c fiber.Ctx, data any) error {
	return c.JSON(data)
}

// SuccessStatus sends a JSON response with a custom status code.
func SuccessStatus(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(data)
}

// Fail sends a JSON error response with the given status, code, and message.
func Fail(c fiber.Ctx, status int, code Code, message string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: message,
	})
}
