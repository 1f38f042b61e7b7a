// internal/handlers/payment.go
package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	publicBaseURL  string
}

func NewPaymentHandler(paymentService *services.PaymentService, publicBaseURL string) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		publicBaseURL:  publicBaseURL,
	}
}

// POST /v1/checkout
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	var req services.CreateCheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.paymentService.CreateCheckout(c.Request.Context(), &req, CustomerIP(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, response)
}

// GET /v1/payment-methods
func (h *PaymentHandler) GetPaymentMethods(c *gin.Context) {
	methods, err := h.paymentService.PaymentMethods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"payment_methods": methods,
	})
}

// GET /payment/return
// The gateway sends the buyer here; forward them to the page that collects
// their email.
func (h *PaymentHandler) PaymentReturn(c *gin.Context) {
	target := h.publicBaseURL + "/payment/success"
	if token := c.Query("token"); token != "" {
		target += "?token=" + url.QueryEscape(token)
	}
	c.Redirect(http.StatusFound, target)
}
