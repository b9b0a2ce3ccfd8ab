package workflow

// Verb is the operation part of a permission code.
type Verb string

const (
	VerbView    Verb = "view"
	VerbCreate  Verb = "create"
	VerbEdit    Verb = "edit"
	VerbApprove Verb = "approve"
	VerbCancel  Verb = "cancel"
	VerbDelete  Verb = "delete"
	VerbReceive Verb = "receive"
	VerbPay     Verb = "pay"
	VerbFile    Verb = "file"
)

// Permission builds the permission code for verb on kind, e.g. approve_purchase_orders.
func Permission(k Kind, v Verb) string {
	return string(v) + "_" + k.Plural()
}

var kindVerbs = map[Kind][]Verb{
	KindPurchaseOrder: {VerbView, VerbCreate, VerbEdit, VerbApprove, VerbCancel, VerbDelete, VerbReceive},
	KindPurchaseBill:  {VerbView, VerbCreate, VerbEdit, VerbApprove, VerbCancel, VerbDelete, VerbPay},
	KindGoodsReceipt:  {VerbView, VerbCreate, VerbEdit, VerbApprove, VerbCancel, VerbDelete, VerbReceive},
	KindExpense:       {VerbView, VerbCreate, VerbEdit, VerbApprove, VerbCancel, VerbDelete, VerbPay},
	KindTDSDeduction:  {VerbView, VerbCreate, VerbEdit, VerbApprove, VerbCancel, VerbDelete, VerbPay, VerbFile},
}

// KindPermissions lists every permission code that applies to k.
func KindPermissions(k Kind) []string {
	verbs := kindVerbs[k]
	out := make([]string, 0, len(verbs))
	for _, v := range verbs {
		out = append(out, Permission(k, v))
	}
	return out
}

// AllPermissions lists the permission codes of every kind.
func AllPermissions() []string {
	var out []string
	for _, k := range AllKinds() {
		out = append(out, KindPermissions(k)...)
	}
	return out
}
