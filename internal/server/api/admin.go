package api

import (
	"net/http"

	"github.com/devicebind/devicebind/internal/server/services"
	"github.com/devicebind/devicebind/pkg/models"
	"github.com/devicebind/devicebind/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// AdminHandler exposes the operator surface: binding listings, the
// verification audit log, deactivation and aggregate statistics.
type AdminHandler struct {
	bindingService *services.BindingService
}

func NewAdminHandler(bindingService *services.BindingService) *AdminHandler {
	return &AdminHandler{bindingService: bindingService}
}

func (h *AdminHandler) ListBindings(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100, 1, 1000)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	bindings, err := h.bindingService.ListAllBindings(r.Context(), limit, offset)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to fetch bindings")
		return
	}

	respondJSON(w, http.StatusOK, models.ListBindingsResponse{
		Count:    len(bindings),
		Bindings: bindings,
		Limit:    limit,
		Offset:   offset,
	})
}

func (h *AdminHandler) UserBindings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid user id")
		return
	}

	bindings, err := h.bindingService.GetUserBindings(r.Context(), userID)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to fetch user bindings")
		return
	}
	entries, err := h.bindingService.GetVerificationLog(r.Context(), userID, 50)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to fetch verification log")
		return
	}

	respondJSON(w, http.StatusOK, models.UserBindingsResponse{
		UserID:          userID.String(),
		Bindings:        bindings,
		VerificationLog: entries,
	})
}

func (h *AdminHandler) DeactivateBinding(w http.ResponseWriter, r *http.Request) {
	bindingID, err := uuid.Parse(chi.URLParam(r, "binding_id"))
	if err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid binding id")
		return
	}

	ok, err := h.bindingService.DeactivateBinding(r.Context(), bindingID)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to deactivate binding")
		return
	}
	if !ok {
		respondErrorJSON(w, http.StatusNotFound, "binding not found")
		return
	}

	respondJSON(w, http.StatusOK, models.DeactivateBindingResponse{
		Success: true,
		Message: "Binding deactivated. User will need to re-authenticate.",
	})
}

func (h *AdminHandler) VerificationLog(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != models.VerificationStatusSuccess && status != models.VerificationStatusFailed {
		respondErrorJSON(w, http.StatusBadRequest, "status must be success or failed")
		return
	}
	limit := queryInt(r, "limit", 100, 1, 1000)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	entries, err := h.bindingService.ListVerificationLog(r.Context(), status, limit, offset)
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to fetch verification log")
		return
	}

	respondJSON(w, http.StatusOK, models.VerificationLogResponse{
		Count:  len(entries),
		Logs:   entries,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bindingService.Stats(r.Context())
	if err != nil {
		respondErrorJSON(w, http.StatusInternalServerError, "failed to fetch statistics")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// DebugCapture runs the capture engine once so an operator can see what the
// host reports without touching any binding.
func (h *AdminHandler) DebugCapture(w http.ResponseWriter, r *http.Request) {
	resp := models.CaptureDebugResponse{System: utils.DetectOS()}

	mac, strategy, sample, ok := h.bindingService.CaptureDebug(r.Context())
	resp.MACCaptured = ok
	if ok {
		resp.MACAddress = mac
		resp.Strategy = strategy
		resp.ChecksumGenerated = true
		resp.ChecksumSample = sample
	} else {
		resp.MACAddress = "FAILED"
	}

	respondJSON(w, http.StatusOK, resp)
}
