// internal/handlers/verification.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

// VerificationHandler answers the app's entitlement checks for a device.
type VerificationHandler struct {
	licenseService *services.LicenseService
}

func NewVerificationHandler(licenseService *services.LicenseService) *VerificationHandler {
	return &VerificationHandler{
		licenseService: licenseService,
	}
}

// GET /v1/premium-status?device_id=&app_slug=
func (h *VerificationHandler) PremiumStatus(c *gin.Context) {
	status, err := h.licenseService.PremiumStatus(c.Request.Context(), c.Query("device_id"), c.Query("app_slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, status)
}
