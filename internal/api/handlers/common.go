package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/phraser/location-server/internal/utils"
)

// errorBody is the envelope for non-degradable failures.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeError maps the error code to a status: bad input is 400, upstream
// failures surface as 503 (504 on timeout) rather than a generic 500, so
// clients can tell a retryable outage from a server bug.
func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		body := errorBody{Error: ae.Message}
		if ae.Err != nil {
			body.Details = ae.Err.Error()
		}
		c.JSON(status, body)
		return
	}

	c.JSON(status, errorBody{Error: "internal error"})
}

// clientIdentifier prefers the explicit client token, falling back to the
// caller's network address.
func clientIdentifier(c *gin.Context, clientID string) string {
	if clientID != "" {
		return clientID
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
