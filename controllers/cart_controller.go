package controllers

import (
	"log"
	"net/http"

	"commerce-core/middleware"
	"commerce-core/services"

	"github.com/gin-gonic/gin"
)

type CartController struct {
	cartService *services.CartService
}

func NewCartController(cartService *services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// GetCart returns the current cart for the authenticated user
func (cc *CartController) GetCart(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cart, err := cc.cartService.ListLines(c.Request.Context(), userID)
	if err != nil {
		log.Printf("❌ [CartController] failed to get cart for user %s: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

type addLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AddLine adds or merges an item in the cart
func (cc *CartController) AddLine(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	cart, err := cc.cartService.AddLine(c.Request.Context(), userID, req.ProductID, req.Size, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

// RemoveLine removes a specific (product, size) line from the cart
func (cc *CartController) RemoveLine(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	productID := c.Param("product_id")
	size := c.Query("size")

	cart, err := cc.cartService.RemoveLine(c.Request.Context(), userID, productID, size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

// ClearCart empties the user's cart
func (cc *CartController) ClearCart(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := cc.cartService.Clear(c.Request.Context(), userID); err != nil {
		log.Printf("❌ [CartController] failed to clear cart for user %s: %v", userID, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
