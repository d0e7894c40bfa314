package handlers

import (
	"net/http"

	"github.com/rebatewise/backend/internal/services"
)

type ReferralHandler struct {
	service *services.ReferralService
}

func NewReferralHandler(service *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{service: service}
}

// GenerateQR returns the caller's referral link as a QR code
// @Summary Referral QR code
// @Description Generate a QR code image for the caller's referral link
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.APIResponse
// @Failure 401 {object} services.APIResponse
// @Router /referrals/qr [get]
func (h *ReferralHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	link, qrImage, err := h.service.GenerateReferralQR(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to generate referral code", http.StatusInternalServerError, nil)
		return
	}

	services.SendSuccessResponse(w, http.StatusOK, map[string]string{
		"link":    link,
		"qrImage": qrImage,
	})
}
