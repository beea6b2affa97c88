package model

import (
	"time"

	"github.com/google/uuid"
)

// JournalEntry is the local record of one ledger write
type JournalEntry struct {
	Id       uuid.UUID     `json:"id"`
	Account  string        `json:"account"`
	ActionId ActionId      `json:"action_id"`
	Kind     WriteKind     `json:"kind"`
	Status   JournalStatus `json:"status"`
	TxHash   string        `json:"tx_hash,omitempty"`
	Error    string        `json:"error,omitempty"`
	Reward   uint64        `json:"reward"`
	Created  time.Time     `json:"created"`
	Updated  time.Time     `json:"updated"`
}

func NewJournalEntry(account string, id ActionId, kind WriteKind, reward uint64) *JournalEntry {
	now := time.Now().UTC()
	return &JournalEntry{
		Id:       uuid.New(),
		Account:  account,
		ActionId: id,
		Kind:     kind,
		Status:   JournalStatusSubmitted,
		Reward:   reward,
		Created:  now,
		Updated:  now,
	}
}
