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

// WithdrawalService exposes withdrawal creation (user-facing) and the
// privileged Processing -> Completed/Cancelled transitions (back office).
type WithdrawalService struct {
	ledger    *ledger.Service
	cache     *BalanceCache
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewWithdrawalService(ledgerService *ledger.Service, cache *BalanceCache, auditLogger *audit.Logger) *WithdrawalService {
	return &WithdrawalService{
		ledger:    ledgerService,
		cache:     cache,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type createWithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"referenceId" validate:"required"`
	Metadata    models.Metadata `json:"metadata"`
}

type changeStatusRequest struct {
	UserID      string          `json:"userId" validate:"required"`
	OldStatus   string          `json:"oldStatus" validate:"required"`
	NewStatus   string          `json:"newStatus" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	ActorAction string          `json:"actorAction"`
	Metadata    models.Metadata `json:"metadata"`
}

// CreateWithdrawal reserves funds for a withdrawal
// @Summary Create withdrawal
// @Description Reserve available balance for a withdrawal request
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createWithdrawalRequest true "Withdrawal request"
// @Success 201 {object} APIResponse
// @Failure 422 {object} APIResponse
// @Router /withdrawals [post]
func (s *WithdrawalService) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createWithdrawalRequest

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

	result, err := s.ledger.CreateWithdrawal(r.Context(), userID, req.Amount, req.ReferenceID, req.Metadata)
	if err != nil {
		log.Printf("[WITHDRAWAL] create failed for %s (ref %s): %v", userID, req.ReferenceID, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), userID)
	log.Printf("[WITHDRAWAL] created for %s (ref %s): %s", userID, req.ReferenceID, req.Amount.String())
	SendSuccessResponse(w, http.StatusCreated, result)
}

// ChangeStatus transitions a withdrawal
// @Summary Change withdrawal status
// @Description Move a withdrawal from Processing to Completed or Cancelled
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param referenceId path string true "Withdrawal reference"
// @Param request body changeStatusRequest true "Status transition"
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /withdrawals/{referenceId}/status [put]
func (s *WithdrawalService) ChangeStatus(w http.ResponseWriter, r *http.Request) {
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

	result, err := s.ledger.ChangeWithdrawalStatus(r.Context(), req.UserID, referenceID,
		req.OldStatus, req.NewStatus, req.Amount, req.Metadata, actorID, req.ActorAction)
	if err != nil {
		log.Printf("[WITHDRAWAL] transition failed for ref %s (%s -> %s): %v",
			referenceID, req.OldStatus, req.NewStatus, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), req.UserID)

	if err := s.audit.LogStatusChange(r.Context(), actorID, "withdrawal", referenceID,
		result.Event.EventData.OldStatus, result.Event.EventData.NewStatus,
		r.RemoteAddr, r.UserAgent()); err != nil {
		log.Printf("[WITHDRAWAL] audit write failed for ref %s: %v", referenceID, err)
	}

	SendSuccessResponse(w, http.StatusOK, result)
}
