package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Display is how a status is rendered in lists and badges.
type Display struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Catalog is the static action table of one document kind.
// It must not be mutated once handed to a Registry.
type Catalog struct {
	Kind     Kind
	Statuses []Status // declared enumeration, the first entry is the initial status
	Actions  map[Status][]StatusAction
	Display  map[Status]Display
}

var viewDetails = StatusAction{
	Kind:        ActionViewDetails,
	Label:       "View details",
	Description: "Open the read-only document view",
}

// Initial returns the status new documents are created in.
func (c *Catalog) Initial() Status {
	if len(c.Statuses) == 0 {
		return StatusDraft
	}
	return c.Statuses[0]
}

// Declares reports whether s is part of this catalog's enumeration.
func (c *Catalog) Declares(s Status) bool {
	for _, st := range c.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Knows reports whether s has an action entry. Statuses it does not know
// degrade to view_details only.
func (c *Catalog) Knows(s Status) bool {
	_, ok := c.Actions[s]
	return ok
}

// AvailableActions returns the actions offered for status s to a caller holding perms,
// in catalog order. The result is a fresh slice; callers may keep or modify it.
func (c *Catalog) AvailableActions(s Status, perms PermissionSet) []StatusAction {
	candidates, ok := c.Actions[s]
	if !ok {
		return []StatusAction{viewDetails.clone()}
	}

	out := make([]StatusAction, 0, len(candidates))
	for _, a := range candidates {
		if a.Permitted(perms) {
			out = append(out, a.clone())
		}
	}
	return out
}

// Find returns the catalog entry for action kind k in status s, ignoring permissions.
func (c *Catalog) Find(s Status, k ActionKind) (StatusAction, bool) {
	for _, a := range c.Actions[s] {
		if a.Kind == k {
			return a.clone(), true
		}
	}
	return StatusAction{}, false
}

// Transition returns the first action in status from that leads to status to.
func (c *Catalog) Transition(from, to Status) (StatusAction, bool) {
	for _, a := range c.Actions[from] {
		if a.Next == to {
			return a.clone(), true
		}
	}
	return StatusAction{}, false
}

// IsTerminal reports whether s offers nothing beyond viewing.
func (c *Catalog) IsTerminal(s Status) bool {
	for _, a := range c.Actions[s] {
		if a.Kind != ActionViewDetails {
			return false
		}
	}
	return true
}

// DisplayFor returns the badge of s; unknown statuses get a neutral badge.
func (c *Catalog) DisplayFor(s Status) Display {
	if d, ok := c.Display[s]; ok {
		return d
	}
	return Display{Label: humanize(string(s)), Color: "gray"}
}

// Validate checks that the catalog is exhaustive over its enumeration and that
// every transition lands on a declared status.
func (c *Catalog) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("catalog has unknown kind %q", c.Kind)
	}
	if len(c.Statuses) == 0 {
		return fmt.Errorf("%s: catalog declares no statuses", c.Kind)
	}

	var errs []error
	declared := make(map[Status]bool, len(c.Statuses))
	for _, s := range c.Statuses {
		if !s.IsValid() {
			errs = append(errs, fmt.Errorf("%s: status %q is not in the global enumeration", c.Kind, s))
		}
		if declared[s] {
			errs = append(errs, fmt.Errorf("%s: status %q declared twice", c.Kind, s))
		}
		declared[s] = true

		if _, ok := c.Actions[s]; !ok {
			errs = append(errs, fmt.Errorf("%s: status %q has no action entry", c.Kind, s))
		}
		if _, ok := c.Display[s]; !ok {
			errs = append(errs, fmt.Errorf("%s: status %q has no display entry", c.Kind, s))
		}
	}

	for _, s := range c.Statuses {
		for _, a := range c.Actions[s] {
			if a.Kind == ActionUnknown || int(a.Kind) >= len(actionNames) {
				errs = append(errs, fmt.Errorf("%s: status %q lists an undefined action kind", c.Kind, s))
			}
			if a.Transitions() && !declared[a.Next] {
				errs = append(errs, fmt.Errorf("%s: action %s in %q targets undeclared status %q", c.Kind, a.Kind, s, a.Next))
			}
		}
	}

	for s := range c.Actions {
		if !declared[s] {
			errs = append(errs, fmt.Errorf("%s: action entry for undeclared status %q", c.Kind, s))
		}
	}

	return errors.Join(errs...)
}

func humanize(s string) string {
	if s == "" {
		return "Unknown"
	}
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
