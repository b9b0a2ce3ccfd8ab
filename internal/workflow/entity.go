package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity is the lifecycle view of a document shared by the API and its clients.
type Entity struct {
	ID           string          `json:"id"`
	Kind         Kind            `json:"kind"`
	Number       string          `json:"number"`
	Title        string          `json:"title"`
	PartyName    string          `json:"party_name"`
	Status       Status          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	LastModified time.Time       `json:"last_modified"`
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Status Status
	Query  string
	Page   int
	Limit  int
}

type EventType string

const (
	EventCreated       EventType = "document.created"
	EventStatusChanged EventType = "document.status_changed"
	EventUpdated       EventType = "document.updated"
	EventDeleted       EventType = "document.deleted"
)

// Event is pushed to websocket subscribers after a committed change.
type Event struct {
	Type   EventType `json:"type"`
	Entity Entity    `json:"entity"`
}
