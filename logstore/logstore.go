// Package logstore records what panel users did. Entries are immutable
// once stored; retention is the store's own business.
package logstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStore wraps failures of a concrete store. Callers recover from it
// locally; it never fails the data operation that produced the entry.
var ErrStore = errors.New("log store failure")

// ActionFlag identifies what a log entry records. Values are ordered by
// severity: PanelView is the most routine, Delete the most significant.
type ActionFlag int

const (
	FlagPanelView ActionFlag = iota + 1
	FlagListView
	FlagInstanceView
	FlagUpdate
	FlagCreate
	FlagDelete
)

func (f ActionFlag) String() string {
	switch f {
	case FlagPanelView:
		return "panel_view"
	case FlagListView:
		return "list_view"
	case FlagInstanceView:
		return "instance_view"
	case FlagUpdate:
		return "update"
	case FlagCreate:
		return "create"
	case FlagDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Level selects the least severe action that still gets logged. Each
// level is cumulative: LevelUpdate captures Update, Create and Delete;
// LevelPanelView captures everything.
type Level int

const (
	LevelOff          Level = 0
	LevelPanelView    Level = Level(FlagPanelView)
	LevelListView     Level = Level(FlagListView)
	LevelInstanceView Level = Level(FlagInstanceView)
	LevelUpdate       Level = Level(FlagUpdate)
	LevelCreate       Level = Level(FlagCreate)
	LevelDelete       Level = Level(FlagDelete)
)

// Includes reports whether an action of the given flag is logged at this
// level.
func (l Level) Includes(f ActionFlag) bool {
	return l != LevelOff && f >= ActionFlag(l)
}

// Entry is one recorded action.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	At          time.Time  `json:"at"`
	UserID      string     `json:"user_id,omitempty"`
	UserRepr    string     `json:"user_repr,omitempty"`
	ContentType string     `json:"content_type,omitempty"` // "app.model"
	ObjectID    string     `json:"object_id,omitempty"`
	ObjectRepr  string     `json:"object_repr,omitempty"`
	Flag        ActionFlag `json:"flag"`
	Message     string     `json:"message,omitempty"`
}

// Store persists entries. Append must be safe for concurrent use;
// Entries returns newest-first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context, limit, offset int) ([]Entry, error)
}

// stamp fills in the identity fields a caller left zero.
func stamp(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return e
}
