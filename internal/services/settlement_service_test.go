package services

import (
	"strings"
	"testing"
	"time"

	"github.com/moov-io/iso20022/pkg/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebatewise/backend/internal/models"
)

func completedWithdrawal() *models.Transaction {
	return &models.Transaction{
		ID:          "3f6b9d3e-1f12-4c8a-9f0a-8b1c2d3e4f5a",
		UserID:      "U1",
		Type:        models.TxWithdrawalCompleted,
		Amount:      decimal.RequireFromString("250.75"),
		ReferenceID: "WD-987654321",
		CreatedAt:   time.Now(),
	}
}

func TestFindCompletedWithdrawal(t *testing.T) {
	t.Run("completed lifecycle", func(t *testing.T) {
		txns := []models.Transaction{
			{Type: models.TxWithdrawalProcessing, ReferenceID: "W1"},
			{Type: models.TxWithdrawalCompleted, ReferenceID: "W1"},
		}
		got := findCompletedWithdrawal(txns)
		require.NotNil(t, got)
		assert.Equal(t, models.TxWithdrawalCompleted, got.Type)
	})

	t.Run("still processing", func(t *testing.T) {
		txns := []models.Transaction{
			{Type: models.TxWithdrawalProcessing, ReferenceID: "W1"},
		}
		assert.Nil(t, findCompletedWithdrawal(txns))
	})

	t.Run("cancelled lifecycle", func(t *testing.T) {
		txns := []models.Transaction{
			{Type: models.TxWithdrawalProcessing, ReferenceID: "W1"},
			{Type: models.TxWithdrawalCancelled, ReferenceID: "W1"},
		}
		assert.Nil(t, findCompletedWithdrawal(txns))
	})

	t.Run("unrelated rows ignored", func(t *testing.T) {
		txns := []models.Transaction{
			{Type: models.TxCashback, ReferenceID: "R1"},
			{Type: models.TxDeposit, ReferenceID: "D1"},
		}
		assert.Nil(t, findCompletedWithdrawal(txns))
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Nil(t, findCompletedWithdrawal(nil))
	})
}

func TestCreatePacs008(t *testing.T) {
	service := NewSettlementService(nil)
	txn := completedWithdrawal()

	doc, err := service.CreatePacs008(txn, "EUR", "BANKCODE01", "Jane Example")
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
	require.NotNil(t, doc.GrpHdr.TtlIntrBkSttlmAmt)
	assert.Equal(t, common.ActiveCurrencyCode("EUR"), doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy)
	assert.InDelta(t, 250.75, doc.GrpHdr.TtlIntrBkSttlmAmt.Value, 0.001)

	require.Len(t, doc.CdtTrfTxInf, 1)
	cdtTrf := doc.CdtTrfTxInf[0]
	assert.Equal(t, common.Max35Text(txn.ReferenceID), cdtTrf.PmtId.EndToEndId)
	assert.Equal(t, common.Max35Text(txn.ID), *cdtTrf.PmtId.TxId)
	assert.InDelta(t, 250.75, cdtTrf.IntrBkSttlmAmt.Value, 0.001)
	assert.Equal(t, common.Max35Text("BANKCODE01"), cdtTrf.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId)
	assert.Equal(t, common.Max140Text("Jane Example"), *cdtTrf.Cdtr.Nm)
	assert.Equal(t, common.Max140Text("Rebatewise Ltd"), *cdtTrf.Dbtr.Nm)
}

func TestConvertToXML(t *testing.T) {
	service := NewSettlementService(nil)
	txn := completedWithdrawal()

	doc, err := service.CreatePacs008(txn, "EUR", "BANKCODE01", "Jane Example")
	require.NoError(t, err)

	xmlData, err := service.ConvertToXML(doc)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(xmlData, "<?xml"))
	assert.Contains(t, xmlData, "WD-987654321")
	assert.Contains(t, xmlData, "EUR")
	assert.Contains(t, xmlData, "Jane Example")
}
