package service

import (
	"context"
	"errors"
	"testing"

	"procurement/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardSummaryOnlyCoversViewableKinds(t *testing.T) {
	h := newDocHarness(t, nil)
	ctx := context.Background()
	dash := NewDashboardService(workflow.MustDefaultRegistry(), h.svc)

	h.repo.On("CountByStatus", ctx, "purchase_order").Return(map[string]int64{"draft": 2, "approved": 5}, nil)
	h.repo.On("CountByStatus", ctx, "expense").Return(map[string]int64{}, nil)

	perms := workflow.NewPermissionSet(
		workflow.Permission(workflow.KindPurchaseOrder, workflow.VerbView),
		workflow.Permission(workflow.KindExpense, workflow.VerbView),
		workflow.Permission(workflow.KindPurchaseBill, workflow.VerbCreate),
	)
	out, err := dash.Summary(ctx, perms)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byKind := map[workflow.Kind]KindSummary{}
	for _, s := range out {
		byKind[s.Kind] = s
	}
	assert.Equal(t, int64(7), byKind[workflow.KindPurchaseOrder].Total)
	assert.Equal(t, "purchase-orders", byKind[workflow.KindPurchaseOrder].Resource)
	assert.Equal(t, int64(0), byKind[workflow.KindExpense].Total)
	assert.NotEmpty(t, byKind[workflow.KindExpense].Statuses)
}

func TestDashboardSummaryPropagatesErrors(t *testing.T) {
	h := newDocHarness(t, nil)
	ctx := context.Background()
	dash := NewDashboardService(workflow.MustDefaultRegistry(), h.svc)

	h.repo.On("CountByStatus", ctx, "goods_receipt").Return(nil, errors.New("db down"))

	_, err := dash.Summary(ctx, workflow.NewPermissionSet(workflow.Permission(workflow.KindGoodsReceipt, workflow.VerbView)))
	assert.ErrorContains(t, err, "db down")

	out, err := dash.Summary(ctx, workflow.PermissionSet{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
