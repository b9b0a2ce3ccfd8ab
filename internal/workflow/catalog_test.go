package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullPermissions() PermissionSet {
	return NewPermissionSet(AllPermissions()...)
}

func kindsOf(actions []StatusAction) []ActionKind {
	out := make([]ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Kind)
	}
	return out
}

func TestDefaultRegistryIsValid(t *testing.T) {
	t.Parallel()

	r, err := DefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, AllKinds(), r.Kinds())
}

func TestEveryStatusOffersAtLeastViewDetails(t *testing.T) {
	t.Parallel()

	r := MustDefaultRegistry()
	for _, k := range r.Kinds() {
		c, _ := r.Catalog(k)
		for _, s := range c.Statuses {
			withAll := c.AvailableActions(s, fullPermissions())
			assert.NotEmpty(t, withAll, "%s/%s", k, s)

			withNone := c.AvailableActions(s, NewPermissionSet())
			assert.Contains(t, kindsOf(withNone), ActionViewDetails, "%s/%s", k, s)
		}
	}
}

func TestAvailableActionsRespectPermissions(t *testing.T) {
	t.Parallel()

	r := MustDefaultRegistry()
	sets := []PermissionSet{
		NewPermissionSet(),
		NewPermissionSet(Permission(KindPurchaseOrder, VerbEdit)),
		NewPermissionSet(Permission(KindPurchaseOrder, VerbApprove), Permission(KindExpense, VerbPay)),
		fullPermissions(),
	}

	for _, k := range r.Kinds() {
		c, _ := r.Catalog(k)
		for _, s := range c.Statuses {
			for _, perms := range sets {
				for _, a := range c.AvailableActions(s, perms) {
					for _, p := range a.RequiredPermissions {
						assert.True(t, perms.Has(p), "%s/%s offers %s without %s", k, s, a.Kind, p)
					}
				}
			}
		}
	}
}

func TestTransitionsTargetDeclaredStatuses(t *testing.T) {
	t.Parallel()

	r := MustDefaultRegistry()
	for _, k := range r.Kinds() {
		c, _ := r.Catalog(k)
		for _, s := range c.Statuses {
			for _, a := range c.Actions[s] {
				if a.Transitions() {
					assert.True(t, a.Next.IsValid(), "%s/%s -> %s", k, s, a.Next)
					assert.True(t, c.Declares(a.Next), "%s/%s -> %s", k, s, a.Next)
				}
			}
		}
	}
}

func TestAvailableActionsIsDeterministic(t *testing.T) {
	t.Parallel()

	c := PurchaseOrderCatalog()
	perms := fullPermissions()

	first := c.AvailableActions(StatusPendingApproval, perms)
	second := c.AvailableActions(StatusPendingApproval, perms)
	assert.Equal(t, first, second)
	assert.Equal(t,
		[]ActionKind{ActionApprove, ActionReject, ActionRequestChanges, ActionCancel, ActionViewDetails},
		kindsOf(first))
}

func TestAvailableActionsReturnsCopies(t *testing.T) {
	t.Parallel()

	c := PurchaseOrderCatalog()
	got := c.AvailableActions(StatusPendingApproval, fullPermissions())
	got[0].RequiredPermissions[0] = "tampered"
	got[0].Label = "tampered"

	again := c.AvailableActions(StatusPendingApproval, fullPermissions())
	assert.Equal(t, "Approve", again[0].Label)
	assert.Equal(t, "approve_purchase_orders", again[0].RequiredPermissions[0])
}

func TestApproveOfferedOnlyWithPermission(t *testing.T) {
	t.Parallel()

	c := PurchaseOrderCatalog()

	withPerm := c.AvailableActions(StatusPendingApproval, NewPermissionSet("approve_purchase_orders"))
	assert.Contains(t, kindsOf(withPerm), ActionApprove)
	approve, ok := c.Find(StatusPendingApproval, ActionApprove)
	require.True(t, ok)
	assert.Equal(t, StatusApproved, approve.Next)

	withoutPerm := c.AvailableActions(StatusPendingApproval, NewPermissionSet("edit_purchase_orders"))
	assert.NotContains(t, kindsOf(withoutPerm), ActionApprove)
	assert.Contains(t, kindsOf(withoutPerm), ActionViewDetails)
}

func TestUnknownStatusDegradesToViewDetails(t *testing.T) {
	t.Parallel()

	c := PurchaseOrderCatalog()
	got := c.AvailableActions(Status("archived"), fullPermissions())
	require.Len(t, got, 1)
	assert.Equal(t, ActionViewDetails, got[0].Kind)
	assert.False(t, c.Knows(Status("archived")))
	assert.Equal(t, Display{Label: "Archived", Color: "gray"}, c.DisplayFor(Status("archived")))
}

func TestRequestChangesIsTheOnlyBackwardEdge(t *testing.T) {
	t.Parallel()

	c := PurchaseOrderCatalog()
	a, ok := c.Transition(StatusPendingApproval, StatusDraft)
	require.True(t, ok)
	assert.Equal(t, ActionRequestChanges, a.Kind)

	for _, s := range []Status{StatusRejected, StatusCompleted, StatusCancelled} {
		assert.True(t, c.IsTerminal(s), s)
	}
	assert.False(t, c.IsTerminal(StatusDraft))
}

func TestDestructiveActionsRequireConfirmation(t *testing.T) {
	t.Parallel()

	r := MustDefaultRegistry()
	for _, k := range r.Kinds() {
		c, _ := r.Catalog(k)
		for _, s := range c.Statuses {
			for _, a := range c.Actions[s] {
				switch a.Kind {
				case ActionCancel, ActionDelete, ActionReject:
					assert.True(t, a.RequiresConfirmation, "%s/%s %s", k, s, a.Kind)
				}
			}
		}
	}
}

func TestValidateRejectsBrokenCatalogs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		catalog *Catalog
		wantErr string
	}{
		{
			name: "unmapped status",
			catalog: &Catalog{
				Kind:     KindExpense,
				Statuses: []Status{StatusDraft, StatusApproved},
				Actions:  map[Status][]StatusAction{StatusDraft: {viewDetails}},
				Display:  displayOf(StatusDraft, StatusApproved),
			},
			wantErr: `status "approved" has no action entry`,
		},
		{
			name: "transition to undeclared status",
			catalog: &Catalog{
				Kind:     KindExpense,
				Statuses: []Status{StatusDraft},
				Actions: map[Status][]StatusAction{
					StatusDraft: {act(ActionMarkPaid, "Pay", "", StatusPaid, false)},
				},
				Display: displayOf(StatusDraft),
			},
			wantErr: `targets undeclared status "paid"`,
		},
		{
			name: "status outside the enumeration",
			catalog: &Catalog{
				Kind:     KindExpense,
				Statuses: []Status{"archived"},
				Actions:  map[Status][]StatusAction{"archived": {viewDetails}},
				Display:  map[Status]Display{"archived": {Label: "Archived"}},
			},
			wantErr: "not in the global enumeration",
		},
		{
			name: "missing display",
			catalog: &Catalog{
				Kind:     KindExpense,
				Statuses: []Status{StatusDraft},
				Actions:  map[Status][]StatusAction{StatusDraft: {viewDetails}},
			},
			wantErr: "has no display entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.catalog.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseActionKind(t *testing.T) {
	t.Parallel()

	for k := ActionEdit; k <= ActionViewDetails; k++ {
		parsed, err := ParseActionKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseActionKind("unknown")
	assert.Error(t, err)
	_, err = ParseActionKind("archive")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := ParseKind("purchase-orders")
	require.NoError(t, err)
	assert.Equal(t, KindPurchaseOrder, k)

	k, err = ParseKind("tds_deduction")
	require.NoError(t, err)
	assert.Equal(t, KindTDSDeduction, k)

	_, err = ParseKind("invoices")
	assert.Error(t, err)
}
