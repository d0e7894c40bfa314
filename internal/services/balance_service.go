package services

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rebatewise/backend/internal/ledger"
)

// BalanceService exposes the read paths: the derived balance snapshot and
// the transaction history.
type BalanceService struct {
	ledger *ledger.Service
	cache  *BalanceCache
}

func NewBalanceService(ledgerService *ledger.Service, cache *BalanceCache) *BalanceService {
	return &BalanceService{ledger: ledgerService, cache: cache}
}

// GetBalance returns the derived available balance
// @Summary Balance enquiry
// @Description Return the account totals and derived available balance
// @Tags balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse
// @Router /balance [get]
func (s *BalanceService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if snapshot, hit := s.cache.Get(r.Context(), userID); hit {
		SendSuccessResponse(w, http.StatusOK, snapshot)
		return
	}

	snapshot, err := s.ledger.GetAvailableBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[BALANCE] enquiry failed for %s: %v", userID, err)
		SendLedgerError(w, err)
		return
	}

	s.cache.Set(r.Context(), snapshot)
	SendSuccessResponse(w, http.StatusOK, snapshot)
}

// ListTransactions returns the user's ledger history
// @Summary List transactions
// @Description Return the user's ledger history, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum rows to return"
// @Success 200 {object} APIResponse
// @Router /transactions [get]
func (s *BalanceService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := s.ledger.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[BALANCE] history read failed for %s: %v", userID, err)
		SendLedgerError(w, err)
		return
	}

	SendSuccessResponse(w, http.StatusOK, txns)
}

// GetTransactionsByReference returns the rows for one reference
// @Summary Transactions by reference
// @Description Return every ledger row correlated to a reference ID
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param referenceId path string true "Reference ID"
// @Success 200 {object} APIResponse
// @Router /transactions/{referenceId} [get]
func (s *BalanceService) GetTransactionsByReference(w http.ResponseWriter, r *http.Request) {
	referenceID := chi.URLParam(r, "referenceId")
	if referenceID == "" {
		SendErrorResponse(w, "Reference ID required", http.StatusBadRequest, nil)
		return
	}

	txns, err := s.ledger.GetTransactionsByReference(r.Context(), referenceID)
	if err != nil {
		log.Printf("[BALANCE] reference read failed for %s: %v", referenceID, err)
		SendLedgerError(w, err)
		return
	}

	SendSuccessResponse(w, http.StatusOK, txns)
}
