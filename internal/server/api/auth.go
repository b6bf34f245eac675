package api

import (
	"log"
	"net/http"
	"time"

	"github.com/devicebind/devicebind/internal/server/services"
	"github.com/devicebind/devicebind/pkg/models"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService    *services.AuthService
	bindingService *services.BindingService
}

func NewAuthHandler(authService *services.AuthService, bindingService *services.BindingService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		bindingService: bindingService,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, expiresAt, err := h.authService.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		respondErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		UserID:    profile.ID.String(),
		Binding:   h.bindDevice(r, profile.ID),
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, expiresAt, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondErrorJSON(w, http.StatusUnauthorized, err.Error())
		return
	}

	resp := models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		UserID:    profile.ID.String(),
		Binding:   h.bindDevice(r, profile.ID),
	}
	respondJSON(w, http.StatusOK, resp)
}

// bindDevice runs capture-and-bind best effort after a successful account
// action. A binding failure never blocks registration or login; the user
// simply has no binding until their next successful login.
func (h *AuthHandler) bindDevice(r *http.Request, userID uuid.UUID) *models.BindingInfo {
	result, err := h.bindingService.CaptureAndBind(r.Context(), userID)
	if err != nil {
		log.Printf("Device binding failed for user %s (account action unaffected): %v", userID, err)
		return nil
	}
	return &models.BindingInfo{
		BindingID:  result.BindingID.String(),
		MACAddress: result.MACAddress,
		DeviceOS:   result.DeviceOS,
		DeviceName: result.DeviceName,
	}
}

func (h *AuthHandler) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r)
	if claims == nil {
		respondErrorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, ok := claims.SubjectUserID()
	if !ok {
		respondErrorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	binding, err := h.bindingService.GetActiveBinding(r.Context(), userID)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to fetch binding")
		return
	}

	resp := models.DeviceStatusResponse{
		UserID: userID.String(),
		Bound:  binding != nil,
	}
	if binding != nil {
		// Never expose the checksum to clients
		binding.MACChecksum = ""
		resp.Binding = binding
	}
	respondJSON(w, http.StatusOK, resp)
}
