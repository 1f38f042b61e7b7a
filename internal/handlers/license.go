// internal/handlers/license.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// POST /v1/devices/activate
// Refusals (invalid key, device cap) are answered 200 with a status.
func (h *LicenseHandler) ActivateDevice(c *gin.Context) {
	var req services.ActivateDeviceRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.licenseService.ActivateDevice(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /v1/devices/deactivate
func (h *LicenseHandler) DeactivateDevice(c *gin.Context) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.DeactivateDeviceRequest
	if !bindJSON(c, &req) {
		return
	}

	response, err := h.licenseService.DeactivateDevice(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// POST /v1/collect-email
// The purchase token is the only credential; no session is required.
func (h *LicenseHandler) CollectEmail(c *gin.Context) {
	var req services.CollectEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	issued, err := h.licenseService.CollectEmail(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if issued.Created {
		utils.CreatedResponse(c, issued)
		return
	}
	utils.SuccessResponse(c, issued)
}
