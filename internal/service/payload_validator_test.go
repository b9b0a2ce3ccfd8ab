package service

import (
	"sync"
	"testing"
	"time"

	"procurement/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadValidator(t *testing.T) {
	v := NewPayloadValidator(time.Hour)

	tests := []struct {
		name    string
		kind    workflow.Kind
		payload string
		wantErr string
	}{
		{
			name:    "valid bill",
			kind:    workflow.KindPurchaseBill,
			payload: `{"bill_number": "INV-77", "bill_date": "2026-10-02", "subtotal": "1000", "tax": 180}`,
		},
		{
			name:    "bill missing subtotal",
			kind:    workflow.KindPurchaseBill,
			payload: `{"bill_number": "INV-77", "bill_date": "2026-10-02"}`,
			wantErr: "subtotal",
		},
		{
			name:    "amount is not a number",
			kind:    workflow.KindPurchaseBill,
			payload: `{"bill_number": "INV-77", "bill_date": "2026-10-02", "subtotal": "lots"}`,
			wantErr: "/subtotal",
		},
		{
			name:    "bad date",
			kind:    workflow.KindGoodsReceipt,
			payload: `{"purchase_order_id": "po-1", "received_at": "02/10/2026", "lines": [{"description": "x", "ordered": 1, "received": 1}]}`,
			wantErr: "/received_at",
		},
		{
			name:    "valid expense",
			kind:    workflow.KindExpense,
			payload: `{"category": "travel", "original_amount": 120, "original_currency": "USD", "exchange_rate": "83.2", "spent_at": "2026-09-30"}`,
		},
		{
			name:    "malformed pan",
			kind:    workflow.KindTDSDeduction,
			payload: `{"section": "194C", "pan": "abc", "base_amount": 1000, "payment_date": "2026-10-01"}`,
			wantErr: "/pan",
		},
		{
			name:    "not json",
			kind:    workflow.KindExpense,
			payload: `{"category":`,
			wantErr: "not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.kind, []byte(tt.payload))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrPayloadInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPayloadValidatorUnknownKind(t *testing.T) {
	v := NewPayloadValidator(time.Hour)
	assert.ErrorIs(t, v.Validate("invoice", []byte(`{}`)), ErrUnknownKind)
}

func TestEverySchemaCompiles(t *testing.T) {
	v := newPayloadValidator(payloadSchemas, time.Hour)
	for _, k := range workflow.AllKinds() {
		_, err := v.schema(k)
		assert.NoError(t, err, k)
	}
	assert.Equal(t, len(workflow.AllKinds()), v.cache.Len())
}

func TestPayloadValidatorConcurrentCompile(t *testing.T) {
	v := newPayloadValidator(payloadSchemas, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = v.Validate(workflow.KindPurchaseOrder, []byte(`{"vendor_id": "v", "lines": [{"description": "a", "quantity": 1, "unit_price": 1}]}`))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, v.cache.Len())
}
