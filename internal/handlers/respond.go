package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/inkwell-backend/internal/apierr"
)

// respondError maps service errors onto HTTP statuses. Upstream transport
// failures surface as 502 so clients know a retry may help; malformed model
// output is 422 and a retry will not.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	var apiErr *apierr.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Status != 0:
		status = apiErr.Status
	case errors.Is(err, apierr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apierr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case apierr.IsConfiguration(err):
		status = http.StatusInternalServerError
	default:
		if isGen, retryable := apierr.IsGeneration(err); isGen {
			if retryable {
				status = http.StatusBadGateway
			} else {
				status = http.StatusUnprocessableEntity
			}
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
