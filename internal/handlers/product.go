// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// GET /v1/products?app_slug=
func (h *ProductHandler) GetProducts(c *gin.Context) {
	products, err := h.productService.ListProducts(c.Request.Context(), c.Query("app_slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"products": products,
	})
}
