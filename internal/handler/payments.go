package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lutong-bahay/api/internal/database"
	"github.com/lutong-bahay/api/internal/enum"
	"github.com/lutong-bahay/api/internal/middleware"
	"github.com/lutong-bahay/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	SubmitProof(ctx context.Context, orderID, customerID uuid.UUID, proof string) (*database.Order, error)
	Verify(ctx context.Context, orderID uuid.UUID, approved bool) (*database.Order, error)
	HandleCallback(ctx context.Context, gatewayRef, sourceStatus string) (*database.Order, error)
	MarkRefunded(ctx context.Context, orderID uuid.UUID) (*database.Order, error)
}

// PaymentHandler handles wallet-transfer verification and refund endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers the customer-facing payment endpoints.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/payment-proof", h.SubmitProof)
}

// RegisterAdminRoutes registers the payment management endpoints.
func (h *PaymentHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/orders/{id}/payment/verify", h.Verify)
	r.Post("/admin/orders/{id}/refund", h.MarkRefunded)
}

// RegisterCallbackRoutes registers the gateway webhook. It is unauthenticated;
// the gateway reference acts as the shared secret.
func (h *PaymentHandler) RegisterCallbackRoutes(r chi.Router) {
	r.Post("/payments/gateway/callback", h.Callback)
}

// --- Request types ---

type submitProofRequest struct {
	Proof string `json:"proof"`
}

type verifyRequest struct {
	Approved bool `json:"approved"`
}

type callbackRequest struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// --- Handlers ---

// SubmitProof handles POST /orders/{id}/payment-proof.
func (h *PaymentHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req submitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	customerID := claims.UserID
	if claims.Role == enum.UserRoleAdmin {
		customerID = uuid.Nil
	}

	order, err := h.svc.SubmitProof(r.Context(), orderID, customerID, req.Proof)
	if err != nil {
		writePaymentError(w, err, "submit payment proof")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// Verify handles POST /admin/orders/{id}/payment/verify.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.Verify(r.Context(), orderID, req.Approved)
	if err != nil {
		writePaymentError(w, err, "verify payment")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// Callback handles POST /payments/gateway/callback. The gateway retries
// until it gets a 2xx, so unknown references are acknowledged with 404 only.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Reference == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reference is required"})
		return
	}

	order, err := h.svc.HandleCallback(r.Context(), req.Reference, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown reference"})
			return
		}
		log.Printf("ERROR: gateway callback: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"order_number":   order.OrderNumber,
		"payment_status": string(order.PaymentStatus),
	})
}

// MarkRefunded handles POST /admin/orders/{id}/refund.
func (h *PaymentHandler) MarkRefunded(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.MarkRefunded(r.Context(), orderID)
	if err != nil {
		writePaymentError(w, err, "mark refunded")
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// --- Helpers ---

func writePaymentError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrEmptyProof):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrNotWalletOrder),
		errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrOrderCancelled),
		errors.Is(err, service.ErrPaymentNotPending),
		errors.Is(err, service.ErrNoRefundPending):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
