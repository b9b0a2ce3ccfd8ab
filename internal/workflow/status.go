package workflow

import (
	"fmt"
	"strings"
)

// Status is a lifecycle state of a workflow document.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusDelivered       Status = "delivered"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusPaid            Status = "paid"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusApproved,
	StatusRejected,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusPaid,
}

var validStatuses = func() map[Status]bool {
	m := make(map[Status]bool, len(allStatuses))
	for _, s := range allStatuses {
		m[s] = true
	}
	return m
}()

// AllStatuses returns the global status enumeration.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsValid reports whether s belongs to the global enumeration.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

func (s Status) String() string {
	return string(s)
}

// Kind identifies a document type that carries a lifecycle.
type Kind string

const (
	KindPurchaseOrder Kind = "purchase_order"
	KindPurchaseBill  Kind = "purchase_bill"
	KindGoodsReceipt  Kind = "goods_receipt"
	KindExpense       Kind = "expense"
	KindTDSDeduction  Kind = "tds_deduction"
)

type kindInfo struct {
	plural   string
	resource string
	prefix   string
	label    string
}

var kinds = map[Kind]kindInfo{
	KindPurchaseOrder: {plural: "purchase_orders", resource: "purchase-orders", prefix: "PO", label: "Purchase order"},
	KindPurchaseBill:  {plural: "purchase_bills", resource: "purchase-bills", prefix: "BILL", label: "Purchase bill"},
	KindGoodsReceipt:  {plural: "goods_receipts", resource: "goods-receipts", prefix: "GRN", label: "Goods receipt note"},
	KindExpense:       {plural: "expenses", resource: "expenses", prefix: "EXP", label: "Expense"},
	KindTDSDeduction:  {plural: "tds_deductions", resource: "tds-deductions", prefix: "TDS", label: "TDS deduction"},
}

// AllKinds returns every document kind in a stable order.
func AllKinds() []Kind {
	return []Kind{KindPurchaseOrder, KindPurchaseBill, KindGoodsReceipt, KindExpense, KindTDSDeduction}
}

// ParseKind accepts the kind name ("purchase_order"), its plural or its REST resource ("purchase-orders").
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if _, ok := kinds[Kind(s)]; ok {
		return Kind(s), nil
	}
	for k, info := range kinds {
		if info.resource == s || info.plural == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// Plural is the snake_case plural used in permission codes.
func (k Kind) Plural() string {
	return kinds[k].plural
}

// Resource is the path segment under /api.
func (k Kind) Resource() string {
	return kinds[k].resource
}

// NumberPrefix is the prefix of human-readable document numbers.
func (k Kind) NumberPrefix() string {
	return kinds[k].prefix
}

func (k Kind) Label() string {
	return kinds[k].label
}
