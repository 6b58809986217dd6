package controllers

import (
	"errors"
	"net/http"

	"commerce-core/models"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP responses so every controller
// reports the taxonomy the same way.
func respondError(c *gin.Context, err error) {
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Insufficient stock",
			"product_id": stockErr.ProductID,
			"size":       stockErr.Size,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, models.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid status transition"})
	case errors.Is(err, models.ErrNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": "Order can no longer be cancelled"})
	case errors.Is(err, models.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Order was updated concurrently, retry"})
	case errors.Is(err, models.ErrPaymentDenied):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Payment denied"})
	case errors.Is(err, models.ErrPaymentTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Payment confirmation timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
