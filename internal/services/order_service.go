package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/rebatewise/backend/internal/audit"
	"github.com/rebatewise/backend/internal/ledger"
	"github.com/rebatewise/backend/internal/models"
)

// OrderService exposes order creation and the privileged Open ->
// Completed/Cancelled transitions. Creating an order debits available
// balance immediately; cancelling releases the debit.
type OrderService struct {
	ledger    *ledger.Service
	cache     *BalanceCache
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewOrderService(ledgerService *ledger.Service, cache *BalanceCache, auditLogger *audit.Logger) *OrderService {
	return &OrderService{
		ledger:    ledgerService,
		cache:     cache,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type createOrderRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"referenceId" validate:"required"`
	Metadata    models.Metadata `json:"metadata"`
}

// CreateOrder places an order against available balance
// @Summary Create order
// @Description Debit available balance for an order, reserving the funds
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createOrderRequest true "Order request"
// @Success 201 {object} APIResponse
// @Failure 422 {object} APIResponse
// @Router /orders [post]
func (s *OrderService) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createOrderRequest

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.ledger.CreateOrder(r.Context(), userID, req.Amount, req.ReferenceID, req.Metadata)
	if err != nil {
		log.Printf("[ORDER] create failed for %s (ref %s): %v", userID, req.ReferenceID, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), userID)
	log.Printf("[ORDER] created for %s (ref %s): %s", userID, req.ReferenceID, req.Amount.String())
	SendSuccessResponse(w, http.StatusCreated, result)
}

// ChangeStatus transitions an order
// @Summary Change order status
// @Description Move an order from Open to Completed or Cancelled
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param referenceId path string true "Order reference"
// @Param request body changeStatusRequest true "Status transition"
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /orders/{referenceId}/status [put]
func (s *OrderService) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _ := r.Context().Value("userID").(string)
	referenceID := chi.URLParam(r, "referenceId")
	if referenceID == "" {
		SendErrorResponse(w, "Reference ID required", http.StatusBadRequest, nil)
		return
	}

	var req changeStatusRequest

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.ledger.ChangeOrderStatus(r.Context(), req.UserID, referenceID,
		req.OldStatus, req.NewStatus, req.Amount, req.Metadata, actorID, req.ActorAction)
	if err != nil {
		log.Printf("[ORDER] transition failed for ref %s (%s -> %s): %v",
			referenceID, req.OldStatus, req.NewStatus, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), req.UserID)

	if err := s.audit.LogStatusChange(r.Context(), actorID, "order", referenceID,
		result.Event.EventData.OldStatus, result.Event.EventData.NewStatus,
		r.RemoteAddr, r.UserAgent()); err != nil {
		log.Printf("[ORDER] audit write failed for ref %s: %v", referenceID, err)
	}

	SendSuccessResponse(w, http.StatusOK, result)
}
