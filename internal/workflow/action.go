package workflow

import (
	"fmt"
	"sort"
)

// ActionKind enumerates every action the engine knows how to dispatch.
// Adding a kind requires a matching case in the executor's dispatch switch.
type ActionKind uint8

const (
	ActionUnknown ActionKind = iota
	ActionEdit
	ActionSubmitForApproval
	ActionApprove
	ActionReject
	ActionRequestChanges
	ActionMarkDelivered
	ActionMarkCompleted
	ActionMarkPaid
	ActionCancel
	ActionDelete
	ActionViewDetails
)

var actionNames = [...]string{
	ActionUnknown:           "unknown",
	ActionEdit:              "edit",
	ActionSubmitForApproval: "submit_for_approval",
	ActionApprove:           "approve",
	ActionReject:            "reject",
	ActionRequestChanges:    "request_changes",
	ActionMarkDelivered:     "mark_delivered",
	ActionMarkCompleted:     "mark_completed",
	ActionMarkPaid:          "mark_paid",
	ActionCancel:            "cancel",
	ActionDelete:            "delete",
	ActionViewDetails:       "view_details",
}

func (a ActionKind) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseActionKind maps a symbolic action id to its kind.
func ParseActionKind(s string) (ActionKind, error) {
	for i, name := range actionNames {
		if ActionKind(i) != ActionUnknown && name == s {
			return ActionKind(i), nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown action %q", s)
}

func (a ActionKind) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ActionKind) UnmarshalText(text []byte) error {
	k, err := ParseActionKind(string(text))
	if err != nil {
		return err
	}
	*a = k
	return nil
}

// StatusAction is one entry of the action catalog.
type StatusAction struct {
	Kind                 ActionKind `json:"id"`
	Label                string     `json:"label"`
	Description          string     `json:"description"`
	Next                 Status     `json:"next_status,omitempty"` // empty for non-transitioning actions
	RequiresConfirmation bool       `json:"requires_confirmation"`
	RequiredPermissions  []string   `json:"required_permissions,omitempty"`
}

// Transitions reports whether the action moves the document to another status.
func (a StatusAction) Transitions() bool {
	return a.Next != ""
}

// Permitted reports whether perms covers every permission the action requires.
func (a StatusAction) Permitted(perms PermissionSet) bool {
	return perms.HasAll(a.RequiredPermissions)
}

func (a StatusAction) clone() StatusAction {
	if a.RequiredPermissions != nil {
		perms := make([]string, len(a.RequiredPermissions))
		copy(perms, a.RequiredPermissions)
		a.RequiredPermissions = perms
	}
	return a
}

// Decision is the outcome recorded by an approver.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// PermissionSet is the set of permission codes held by a caller.
type PermissionSet map[string]struct{}

func NewPermissionSet(codes ...string) PermissionSet {
	p := make(PermissionSet, len(codes))
	for _, c := range codes {
		p[c] = struct{}{}
	}
	return p
}

func (p PermissionSet) Has(code string) bool {
	_, ok := p[code]
	return ok
}

// HasAll reports whether every code is held. An empty list is always satisfied.
func (p PermissionSet) HasAll(codes []string) bool {
	for _, c := range codes {
		if !p.Has(c) {
			return false
		}
	}
	return true
}

// Codes returns the held codes sorted.
func (p PermissionSet) Codes() []string {
	out := make([]string, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
