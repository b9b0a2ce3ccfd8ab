package workflow

import (
	"fmt"
)

// Registry holds the catalog of every document kind.
type Registry struct {
	catalogs map[Kind]*Catalog
}

// NewRegistry validates and indexes the given catalogs.
func NewRegistry(catalogs ...*Catalog) (*Registry, error) {
	r := &Registry{catalogs: make(map[Kind]*Catalog, len(catalogs))}
	for _, c := range catalogs {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		if _, dup := r.catalogs[c.Kind]; dup {
			return nil, fmt.Errorf("duplicate catalog for %s", c.Kind)
		}
		r.catalogs[c.Kind] = c
	}
	return r, nil
}

// DefaultRegistry builds the catalogs of all procurement documents.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(
		PurchaseOrderCatalog(),
		PurchaseBillCatalog(),
		GoodsReceiptCatalog(),
		ExpenseCatalog(),
		TDSDeductionCatalog(),
	)
}

// MustDefaultRegistry panics when the built-in catalogs are inconsistent.
func MustDefaultRegistry() *Registry {
	r, err := DefaultRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Catalog(k Kind) (*Catalog, bool) {
	c, ok := r.catalogs[k]
	return c, ok
}

func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.catalogs))
	for _, k := range AllKinds() {
		if _, ok := r.catalogs[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

var displays = map[Status]Display{
	StatusDraft:           {Label: "Draft", Color: "gray"},
	StatusPendingApproval: {Label: "Pending approval", Color: "yellow"},
	StatusApproved:        {Label: "Approved", Color: "green"},
	StatusRejected:        {Label: "Rejected", Color: "red"},
	StatusDelivered:       {Label: "Delivered", Color: "blue"},
	StatusCompleted:       {Label: "Completed", Color: "purple"},
	StatusCancelled:       {Label: "Cancelled", Color: "red"},
	StatusPaid:            {Label: "Paid", Color: "teal"},
}

func displayOf(statuses ...Status) map[Status]Display {
	m := make(map[Status]Display, len(statuses))
	for _, s := range statuses {
		m[s] = displays[s]
	}
	return m
}

func act(kind ActionKind, label, description string, next Status, confirm bool, perms ...string) StatusAction {
	return StatusAction{
		Kind:                 kind,
		Label:                label,
		Description:          description,
		Next:                 next,
		RequiresConfirmation: confirm,
		RequiredPermissions:  perms,
	}
}

// approvalStages are the draft/pending_approval entries shared by every kind.
func approvalStages(k Kind, noun string) map[Status][]StatusAction {
	edit := Permission(k, VerbEdit)
	approve := Permission(k, VerbApprove)
	cancel := Permission(k, VerbCancel)

	return map[Status][]StatusAction{
		StatusDraft: {
			act(ActionEdit, "Edit", "Edit the "+noun, "", false, edit),
			act(ActionSubmitForApproval, "Submit for approval", "Send the "+noun+" to an approver", StatusPendingApproval, false, edit),
			act(ActionCancel, "Cancel", "Cancel the "+noun, StatusCancelled, true, cancel),
			act(ActionDelete, "Delete", "Delete the draft permanently", "", true, Permission(k, VerbDelete)),
			viewDetails,
		},
		StatusPendingApproval: {
			act(ActionApprove, "Approve", "Approve the "+noun, StatusApproved, false, approve),
			act(ActionReject, "Reject", "Reject the "+noun, StatusRejected, true, approve),
			act(ActionRequestChanges, "Request changes", "Return the "+noun+" to draft for changes", StatusDraft, false, approve),
			act(ActionCancel, "Cancel", "Cancel the "+noun, StatusCancelled, true, cancel),
			viewDetails,
		},
	}
}

func terminal(actions map[Status][]StatusAction, statuses ...Status) {
	for _, s := range statuses {
		actions[s] = []StatusAction{viewDetails}
	}
}

func PurchaseOrderCatalog() *Catalog {
	k := KindPurchaseOrder
	actions := approvalStages(k, "purchase order")
	actions[StatusApproved] = []StatusAction{
		act(ActionMarkDelivered, "Mark delivered", "Record that the goods were delivered", StatusDelivered, false, Permission(k, VerbReceive)),
		act(ActionCancel, "Cancel", "Cancel the approved order", StatusCancelled, true, Permission(k, VerbCancel)),
		viewDetails,
	}
	actions[StatusDelivered] = []StatusAction{
		act(ActionMarkCompleted, "Mark completed", "Close the purchase order", StatusCompleted, false, Permission(k, VerbReceive)),
		viewDetails,
	}
	terminal(actions, StatusRejected, StatusCompleted, StatusCancelled)

	statuses := []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusDelivered, StatusCompleted, StatusCancelled}
	return &Catalog{Kind: k, Statuses: statuses, Actions: actions, Display: displayOf(statuses...)}
}

func PurchaseBillCatalog() *Catalog {
	k := KindPurchaseBill
	actions := approvalStages(k, "bill")
	actions[StatusApproved] = []StatusAction{
		act(ActionMarkPaid, "Mark paid", "Record payment to the vendor", StatusPaid, true, Permission(k, VerbPay)),
		act(ActionCancel, "Cancel", "Cancel the approved bill", StatusCancelled, true, Permission(k, VerbCancel)),
		viewDetails,
	}
	terminal(actions, StatusRejected, StatusPaid, StatusCancelled)

	statuses := []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusPaid, StatusCancelled}
	return &Catalog{Kind: k, Statuses: statuses, Actions: actions, Display: displayOf(statuses...)}
}

func GoodsReceiptCatalog() *Catalog {
	k := KindGoodsReceipt
	actions := approvalStages(k, "goods receipt")
	actions[StatusApproved] = []StatusAction{
		act(ActionMarkCompleted, "Post to inventory", "Post accepted quantities to the stock card", StatusCompleted, true, Permission(k, VerbReceive)),
		viewDetails,
	}
	terminal(actions, StatusRejected, StatusCompleted, StatusCancelled)

	statuses := []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled}
	return &Catalog{Kind: k, Statuses: statuses, Actions: actions, Display: displayOf(statuses...)}
}

func ExpenseCatalog() *Catalog {
	k := KindExpense
	actions := approvalStages(k, "expense")
	actions[StatusApproved] = []StatusAction{
		act(ActionMarkPaid, "Reimburse", "Record reimbursement of the expense", StatusPaid, true, Permission(k, VerbPay)),
		viewDetails,
	}
	terminal(actions, StatusRejected, StatusPaid, StatusCancelled)

	statuses := []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusPaid, StatusCancelled}
	return &Catalog{Kind: k, Statuses: statuses, Actions: actions, Display: displayOf(statuses...)}
}

func TDSDeductionCatalog() *Catalog {
	k := KindTDSDeduction
	actions := approvalStages(k, "deduction")
	actions[StatusApproved] = []StatusAction{
		act(ActionMarkPaid, "Mark deposited", "Record the challan deposit with the government", StatusPaid, true, Permission(k, VerbPay)),
		act(ActionCancel, "Cancel", "Cancel the approved deduction", StatusCancelled, true, Permission(k, VerbCancel)),
		viewDetails,
	}
	actions[StatusPaid] = []StatusAction{
		act(ActionMarkCompleted, "Mark filed", "Record that the quarterly return was filed", StatusCompleted, false, Permission(k, VerbFile)),
		viewDetails,
	}
	terminal(actions, StatusRejected, StatusCompleted, StatusCancelled)

	statuses := []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusPaid, StatusCompleted, StatusCancelled}
	display := displayOf(statuses...)
	display[StatusPaid] = Display{Label: "Deposited", Color: "teal"}
	display[StatusCompleted] = Display{Label: "Filed", Color: "purple"}
	return &Catalog{Kind: k, Statuses: statuses, Actions: actions, Display: display}
}
