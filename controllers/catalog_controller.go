package controllers

import (
	"net/http"

	"commerce-core/models"
	"commerce-core/services"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	catalogService *services.CatalogService
}

func NewCatalogController(catalogService *services.CatalogService) *CatalogController {
	return &CatalogController{catalogService: catalogService}
}

// ListProducts returns a page of the catalog, optionally filtered by category
func (pc *CatalogController) ListProducts(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	category := c.Query("category")

	products, total, err := pc.catalogService.ListProducts(c.Request.Context(), category, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"meta": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetProduct returns one product with its variants
func (pc *CatalogController) GetProduct(c *gin.Context) {
	product, err := pc.catalogService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// GetStock returns the current quantity for one variant
func (pc *CatalogController) GetStock(c *gin.Context) {
	size := c.Query("size")
	if size == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size query parameter is required"})
		return
	}

	stock, err := pc.catalogService.GetStock(c.Request.Context(), c.Param("id"), size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": c.Param("id"),
		"size":       size,
		"stock":      stock,
	})
}

// UpsertProduct creates or replaces a product (admin only)
func (pc *CatalogController) UpsertProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	saved, err := pc.catalogService.UpsertProduct(c.Request.Context(), &product)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": saved})
}
