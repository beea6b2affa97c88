package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onemorebsmith/psychcoins/src/model"
)

// History remembers which categories an account has ever completed. Only
// positive facts are stored, an absent entry means "ask the ledger".
type History interface {
	HasAny(ctx context.Context, account common.Address, cat model.Category) (bool, error)
	Record(ctx context.Context, account common.Address, id model.ActionId, at time.Time) error
	Completed(ctx context.Context, account common.Address, cat model.Category) ([]model.ActionId, error)
}

type memoryKey struct {
	account common.Address
	cat     model.Category
}

// MemoryHistory is the process local History used when no redis is configured
type MemoryHistory struct {
	lock    sync.Mutex
	entries map[memoryKey]map[model.ActionId]time.Time
}

var _ History = (*MemoryHistory)(nil)

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: map[memoryKey]map[model.ActionId]time.Time{}}
}

func (mh *MemoryHistory) HasAny(_ context.Context, account common.Address, cat model.Category) (bool, error) {
	mh.lock.Lock()
	defer mh.lock.Unlock()
	return len(mh.entries[memoryKey{account, cat}]) > 0, nil
}

func (mh *MemoryHistory) Record(_ context.Context, account common.Address, id model.ActionId, at time.Time) error {
	mh.lock.Lock()
	defer mh.lock.Unlock()
	key := memoryKey{account, id.Category()}
	set, ok := mh.entries[key]
	if !ok {
		set = map[model.ActionId]time.Time{}
		mh.entries[key] = set
	}
	if _, exists := set[id]; !exists {
		set[id] = at
	}
	return nil
}

func (mh *MemoryHistory) Completed(_ context.Context, account common.Address, cat model.Category) ([]model.ActionId, error) {
	mh.lock.Lock()
	defer mh.lock.Unlock()
	set := mh.entries[memoryKey{account, cat}]
	out := make([]model.ActionId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}
