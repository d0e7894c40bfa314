package services

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rebatewise/backend/internal/ledger"
	"github.com/rebatewise/backend/internal/models"
)

// CashbackService exposes the credit procedures: cashback from tracked
// purchases, deposits, and referral commissions with their reversals.
// These endpoints are invoked by the affiliate-network callback worker
// and back office, so the target user travels in the body.
type CashbackService struct {
	ledger    *ledger.Service
	cache     *BalanceCache
	validator *ValidationHelper
}

func NewCashbackService(ledgerService *ledger.Service, cache *BalanceCache) *CashbackService {
	return &CashbackService{
		ledger:    ledgerService,
		cache:     cache,
		validator: NewValidationHelper(),
	}
}

type creditRequest struct {
	UserID      string          `json:"userId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"referenceId" validate:"required"`
	Metadata    models.Metadata `json:"metadata"`
}

type reverseCommissionRequest struct {
	UserID      string          `json:"userId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"referenceId" validate:"required"`
	Reason      string          `json:"reason" validate:"required"`
	Metadata    models.Metadata `json:"metadata"`
}

// AddCashback credits earned cashback
// @Summary Add cashback
// @Description Credit confirmed cashback to a user's ledger
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body creditRequest true "Cashback credit"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /cashback [post]
func (s *CashbackService) AddCashback(w http.ResponseWriter, r *http.Request) {
	s.handleCredit(w, r, "cashback", s.ledger.AddCashback)
}

// AddDeposit credits a confirmed deposit
// @Summary Add deposit
// @Description Credit a confirmed broker deposit to a user's ledger
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body creditRequest true "Deposit credit"
// @Success 201 {object} APIResponse
// @Router /deposits [post]
func (s *CashbackService) AddDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleCredit(w, r, "deposit", s.ledger.AddDeposit)
}

// AddReferralCommission credits a referral commission
// @Summary Add referral commission
// @Description Credit a referral commission to the referrer's ledger
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body creditRequest true "Referral commission credit"
// @Success 201 {object} APIResponse
// @Router /referrals/commission [post]
func (s *CashbackService) AddReferralCommission(w http.ResponseWriter, r *http.Request) {
	s.handleCredit(w, r, "referral commission", s.ledger.AddReferralCommission)
}

type creditFunc func(ctx context.Context, userID string, amount decimal.Decimal, referenceID string, metadata models.Metadata) (*ledger.TransactionResult, error)

func (s *CashbackService) handleCredit(w http.ResponseWriter, r *http.Request, label string, credit creditFunc) {
	var req creditRequest

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

	result, err := credit(r.Context(), req.UserID, req.Amount, req.ReferenceID, req.Metadata)
	if err != nil {
		log.Printf("[LEDGER] %s credit failed for %s (ref %s): %v", label, req.UserID, req.ReferenceID, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), req.UserID)
	log.Printf("[LEDGER] %s credited for %s (ref %s): %s", label, req.UserID, req.ReferenceID, req.Amount.String())
	SendSuccessResponse(w, http.StatusCreated, result)
}

// ReverseReferralCommission reverses a referral commission
// @Summary Reverse referral commission
// @Description Claw back a previously granted referral commission
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reverseCommissionRequest true "Commission reversal"
// @Success 201 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /referrals/commission/reverse [post]
func (s *CashbackService) ReverseReferralCommission(w http.ResponseWriter, r *http.Request) {
	var req reverseCommissionRequest

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

	result, err := s.ledger.ReverseReferralCommission(r.Context(), req.UserID, req.Amount, req.ReferenceID, req.Reason, req.Metadata)
	if err != nil {
		log.Printf("[LEDGER] commission reversal failed for %s (ref %s): %v", req.UserID, req.ReferenceID, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Invalidate(r.Context(), req.UserID)
	log.Printf("[LEDGER] commission reversed for %s (ref %s): %s", req.UserID, req.ReferenceID, req.Amount.String())
	SendSuccessResponse(w, http.StatusCreated, result)
}
