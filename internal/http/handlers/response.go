// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints.
//
// Conventions:
//   - Successful bodies are wrapped as {"data": ...} so clients always read
//     the same envelope.
//   - Errors are {"request_id", "error", "message"} where "error" is a stable
//     code from errors.go.
//   - fail() logs 5xx responses with the request-scoped logger.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "error": "not_found",
//	  "message": "animal not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "data": { "id": 1, "name": "Rex", "type": "dog" } }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-animals/internal/domain"
	"github.com/tbourn/go-animals/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"error" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"animal not found"`
}

// AnimalResponse is the envelope for a single animal.
type AnimalResponse struct {
	Data domain.Animal `json:"data"`
}

// AnimalListResponse is the envelope for a list of animals.
type AnimalListResponse struct {
	Data []domain.Animal `json:"data"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// okData writes {"data": v}.
func okData(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
