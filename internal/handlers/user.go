// internal/handlers/user.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tarksober/license-backend/internal/i18n"
	"github.com/tarksober/license-backend/internal/services"
	"github.com/tarksober/license-backend/internal/utils"
)

// UserHandler serves the signed-in account's view of its licenses.
type UserHandler struct {
	licenseService *services.LicenseService
}

func NewUserHandler(licenseService *services.LicenseService) *UserHandler {
	return &UserHandler{
		licenseService: licenseService,
	}
}

// GET /v1/me/licenses
func (h *UserHandler) MyLicenses(c *gin.Context) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	licenses, err := h.licenseService.MyLicenses(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"licenses": licenses,
	})
}

// POST /v1/me/link-account
// Claims every unlinked license bought with the account's verified email.
func (h *UserHandler) LinkAccount(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	email, exists := utils.GetUserEmailFromContext(c)
	if !exists {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "email"), nil)
		return
	}

	response, err := h.licenseService.LinkAccount(c.Request.Context(), userID, email)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}
