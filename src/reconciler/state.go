package reconciler

import (
	"time"

	"github.com/onemorebsmith/psychcoins/src/model"
)

type ActionStatus string

const (
	StatusUnknown   ActionStatus = "unknown"
	StatusLocalOnly ActionStatus = "local_only"
	StatusConfirmed ActionStatus = "confirmed"
	StatusError     ActionStatus = "error"
)

// ActionState is the externally visible state of one action
type ActionState struct {
	Status          ActionStatus    `json:"status"`
	Value           bool            `json:"value"`
	Pending         bool            `json:"pending"`
	ErrorKind       model.ErrorKind `json:"error_kind,omitempty"`
	CompletionCount uint64          `json:"completion_count"`
}

type entry struct {
	status    ActionStatus
	value     bool
	confirmed *bool // last value the ledger reported or confirmed, nil if never read
	count     uint64
	errKind   model.ErrorKind
	// version moves on every local mutation, reads started before a move
	// are older than the local state and are not applied
	version uint64
	readAt  uint64 // ticket of the read last applied
}

func newEntry() *entry {
	return &entry{status: StatusUnknown}
}

func (e *entry) effective() bool {
	if e.status == StatusUnknown {
		return false
	}
	return e.value
}

func (e *entry) confirmedTrue() bool {
	return e.confirmed != nil && *e.confirmed
}

func (e *entry) confirm(v bool) {
	e.status = StatusConfirmed
	e.value = v
	e.confirmed = &v
	e.errKind = model.KindNone
	e.version++
}

// setLocal shows an optimistic value, written or not
func (e *entry) setLocal(v bool) {
	e.status = StatusLocalOnly
	e.value = v
	e.errKind = model.KindNone
	e.version++
}

// fail marks a write that never left, keeping the effective value
func (e *entry) fail(kind model.ErrorKind) {
	e.value = e.effective()
	e.status = StatusError
	e.errKind = kind
	e.version++
}

// revert drops the optimistic value back to the last confirmed one
func (e *entry) revert(kind model.ErrorKind) {
	e.status = StatusError
	e.value = e.confirmedTrue()
	e.errKind = kind
	e.version++
}

// clearLocal forgets a local-only value or a dismissed error
func (e *entry) clearLocal() {
	e.errKind = model.KindNone
	e.version++
	if e.confirmed == nil {
		e.status = StatusUnknown
		e.value = false
		return
	}
	e.status = StatusConfirmed
	e.value = *e.confirmed
}

// applyRecord merges a ledger read. Local intent and transient errors are
// kept, only their underlying confirmed value moves. Callers must check the
// version first: a read issued before the last local mutation is stale.
func (e *entry) applyRecord(rec model.CompletionRecord) {
	v := rec.HasCompleted
	e.confirmed = &v
	e.count = rec.CompletionCount
	switch e.status {
	case StatusLocalOnly:
		if e.value == v {
			e.status = StatusConfirmed
		}
	case StatusError:
		e.value = v
	default:
		e.status = StatusConfirmed
		e.value = v
	}
}

func (e *entry) countsTrue() bool {
	return e.status != StatusUnknown && e.value
}

func (e *entry) state(pending bool) ActionState {
	return ActionState{
		Status:          e.status,
		Value:           e.value,
		Pending:         pending,
		ErrorKind:       e.errKind,
		CompletionCount: e.count,
	}
}

type ViewError struct {
	ActionId model.ActionId  `json:"action_id,omitempty"`
	Kind     model.ErrorKind `json:"kind"`
	Message  string          `json:"message"`
}

// ViewModel is everything a presentation layer needs to render a stage. It
// is a snapshot, derived fields are recomputed on every call to View.
type ViewModel struct {
	Account         string                         `json:"account"`
	StageIndex      int                            `json:"stage_index"`
	StageCount      int                            `json:"stage_count"`
	StageTitle      string                         `json:"stage_title"`
	Stage           model.Stage                    `json:"stage"`
	ProgressPercent float64                        `json:"progress_percent"`
	BadgeUnlocked   bool                           `json:"badge_unlocked"`
	CompletedCount  int                            `json:"completed_count"`
	TotalActions    int                            `json:"total_actions"`
	Actions         map[model.ActionId]ActionState `json:"actions"`
	Balance         string                         `json:"balance,omitempty"`
	BalanceWhole    string                         `json:"balance_whole,omitempty"`
	TotalCompleted  *uint64                        `json:"total_completed,omitempty"`
	IsLoading       bool                           `json:"is_loading"`
	Network         model.NetworkState             `json:"network"`
	CategoryHistory map[model.Category]bool        `json:"category_history"`
	NextReward      map[model.Category]uint64      `json:"next_reward"`
	Celebrating     bool                           `json:"celebrating"`
	LastError       *ViewError                     `json:"last_error,omitempty"`
}

type ToggleResult struct {
	ActionId           model.ActionId   `json:"action_id"`
	Value              bool             `json:"value"`
	Skipped            bool             `json:"skipped,omitempty"`
	NeedsNetworkSwitch bool             `json:"needs_network_switch,omitempty"`
	LocalOnly          bool             `json:"local_only,omitempty"`
	Dispatched         bool             `json:"dispatched,omitempty"`
	Stale              bool             `json:"stale,omitempty"`
	Written            []model.ActionId `json:"written,omitempty"`
	Reward             uint64           `json:"reward,omitempty"`
}

type EventType string

const (
	EventCelebrate      EventType = "celebrate"
	EventSwitchRequired EventType = "switch_required"
	EventWriteFailed    EventType = "write_failed"
	EventConfirmed      EventType = "confirmed"
	EventBalanceUpdated EventType = "balance_updated"
	EventStageChanged   EventType = "stage_changed"
)

type Event struct {
	Type     EventType       `json:"type"`
	ActionId model.ActionId  `json:"action_id,omitempty"`
	Value    bool            `json:"value,omitempty"`
	Reward   uint64          `json:"reward,omitempty"`
	Kind     model.ErrorKind `json:"kind,omitempty"`
	Message  string          `json:"message,omitempty"`
	Balance  string          `json:"balance,omitempty"`
	Stage    int             `json:"stage"`
	Duration time.Duration   `json:"duration,omitempty"`
	At       time.Time       `json:"at"`
}
