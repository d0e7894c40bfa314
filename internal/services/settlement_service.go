package services

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/rebatewise/backend/internal/ledger"
	"github.com/rebatewise/backend/internal/models"
)

// SettlementService exports completed withdrawals as ISO 20022 pacs.008
// credit-transfer messages for the payout bank. Only a withdrawal whose
// ledger history ends in withdrawal_completed can be exported.
type SettlementService struct {
	ledger    *ledger.Service
	validator *ValidationHelper
}

func NewSettlementService(ledgerService *ledger.Service) *SettlementService {
	return &SettlementService{
		ledger:    ledgerService,
		validator: NewValidationHelper(),
	}
}

type settlementRequest struct {
	ReferenceID string `json:"referenceId" validate:"required"`
	Currency    string `json:"currency" validate:"required,len=3"`
	BankCode    string `json:"bankCode" validate:"required"`
	Beneficiary string `json:"beneficiary" validate:"required"`
}

// ExportWithdrawal exports a completed withdrawal as pacs.008
// @Summary Export settlement message
// @Description Build an ISO 20022 pacs.008 credit transfer for a completed withdrawal
// @Tags settlements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body settlementRequest true "Settlement export request"
// @Success 200 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /settlements/export [post]
func (s *SettlementService) ExportWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest

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

	txns, err := s.ledger.GetTransactionsByReference(r.Context(), req.ReferenceID)
	if err != nil {
		log.Printf("[SETTLEMENT] history read failed for %s: %v", req.ReferenceID, err)
		SendLedgerError(w, err)
		return
	}

	completed := findCompletedWithdrawal(txns)
	if completed == nil {
		SendErrorResponse(w, "Withdrawal is not completed", http.StatusConflict, nil)
		return
	}

	doc, err := s.CreatePacs008(completed, req.Currency, req.BankCode, req.Beneficiary)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	SendSuccessResponse(w, http.StatusOK, map[string]any{
		"messageType": "pacs.008.001.08",
		"referenceId": req.ReferenceID,
		"xml":         xmlData,
	})
}

// findCompletedWithdrawal returns the withdrawal_completed row only when
// it is the final lifecycle entry for the reference.
func findCompletedWithdrawal(txns []models.Transaction) *models.Transaction {
	var last *models.Transaction
	for i := range txns {
		switch txns[i].Type {
		case models.TxWithdrawalProcessing, models.TxWithdrawalCompleted, models.TxWithdrawalCancelled:
			last = &txns[i]
		}
	}
	if last == nil || last.Type != models.TxWithdrawalCompleted {
		return nil
	}
	return last
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
// for a completed withdrawal payout.
func (s *SettlementService) CreatePacs008(txn *models.Transaction, currency, bankCode, beneficiary string) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	amount := txn.Amount.InexactFloat64()

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(txn.ID)}[0],
					EndToEndId: common.Max35Text(txn.ReferenceID),
					TxId:       &[]common.Max35Text{common.Max35Text(txn.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("REBATEWS")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text("Rebatewise Ltd")}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(bankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(beneficiary)}[0],
				},
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts an ISO 20022 document to an XML string
func (s *SettlementService) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
