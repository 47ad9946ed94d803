package storage

import (
	"github.com/google/uuid"

	"github.com/uhyunpark/behype/pkg/order"
)

type EntryKind string

const (
	KindPlace  EntryKind = "place"
	KindCancel EntryKind = "cancel"
)

// Entry records one submission attempt and what came back.
type Entry struct {
	ID      string             `json:"id"`
	Time    uint64             `json:"time"` // ms since epoch
	Kind    EntryKind          `json:"kind"`
	Asset   string             `json:"asset"`
	Request *order.Request     `json:"request,omitempty"`
	OrderID uint64             `json:"oid,omitempty"` // cancel target
	Result  order.SubmitResult `json:"result"`
	Error   string             `json:"error,omitempty"` // transport failure
}

// AssignedOrderID is the exchange order id, from the result for placements
// and from the target for cancels.
func (e Entry) AssignedOrderID() (uint64, bool) {
	if e.Result.OrderID != nil {
		return *e.Result.OrderID, true
	}
	if e.Kind == KindCancel && e.OrderID != 0 {
		return e.OrderID, true
	}
	return 0, false
}

// Journal is an append-only record of submissions, read newest first.
type Journal interface {
	Append(e *Entry) error
	Recent(limit int) ([]Entry, error)
	ByOrderID(oid uint64) (Entry, bool, error)
}

// Snapshots persists small named values across restarts.
type Snapshots interface {
	SaveSnapshot(name string, v any) error
	LoadSnapshot(name string, v any) (bool, error)
}

// Store is what the service needs from persistence.
type Store interface {
	Journal
	Snapshots
	Close() error
}

func ensureID(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
}
