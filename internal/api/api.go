package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/quickvoicy/quickvoicy/internal/domain"
	"github.com/quickvoicy/quickvoicy/internal/service/invoiceservice"
	"github.com/quickvoicy/quickvoicy/internal/service/userservice"
)

// Handlers exposes a read-only view of users' invoices and stats, matching
// what the web dashboard consumes.
type Handlers struct {
	users    *userservice.Service
	invoices *invoiceservice.Service
}

func New(users *userservice.Service, invoices *invoiceservice.Service) *Handlers {
	return &Handlers{
		users:    users,
		invoices: invoices,
	}
}

func (h *Handlers) InitRoutes(r chi.Router) chi.Router {
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
	)
	r.Get("/health", h.Health)
	r.Route("/api/users/{platform}/{platformID}", func(r chi.Router) {
		r.Get("/invoices", h.ListInvoices)
		r.Get("/stats", h.Stats)
	})
	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type invoiceResponse struct {
	ID               string     `json:"id"`
	Amount           int64      `json:"amount"`
	Description      string     `json:"description"`
	ClientName       string     `json:"client_name,omitempty"`
	ClientEmail      string     `json:"client_email,omitempty"`
	Status           string     `json:"status"`
	LightningInvoice string     `json:"lightning_invoice"`
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	limit := invoiceservice.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	invoices, err := h.invoices.List(r.Context(), user.ID, limit)
	if err != nil {
		zap.L().Error("can't list invoices", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		resp = append(resp, invoiceResponse{
			ID:               inv.ID,
			Amount:           inv.Amount,
			Description:      inv.Description,
			ClientName:       inv.ClientName,
			ClientEmail:      inv.ClientEmail,
			Status:           inv.Status,
			LightningInvoice: inv.LightningInvoice,
			CreatedAt:        inv.CreatedAt,
			PaidAt:           inv.PaidAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.resolveUser(w, r)
	if !ok {
		return
	}

	stats, err := h.invoices.Stats(r.Context(), user.ID)
	if err != nil {
		zap.L().Error("can't compute stats", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_invoices": stats.TotalInvoices,
		"paid_invoices":  stats.PaidInvoices,
		"total_earned":   stats.TotalEarned,
	})
}

func (h *Handlers) resolveUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	platform := chi.URLParam(r, "platform")
	platformID := chi.URLParam(r, "platformID")
	if platform != domain.PlatformTelegram && platform != domain.PlatformDiscord {
		http.Error(w, "unknown platform", http.StatusBadRequest)
		return nil, false
	}

	user, err := h.users.Get(r.Context(), platform, platformID)
	if errors.Is(err, userservice.ErrUserNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		zap.L().Error("can't resolve user", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("can't encode response", zap.Error(err))
	}
}
