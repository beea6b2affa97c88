package reconciler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/onemorebsmith/psychcoins/src/ledger"
	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/onemorebsmith/psychcoins/src/registry"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = fmt.Errorf("reconciler is closed")

const refreshConcurrency = 8

type NetworkGuard interface {
	State(ctx context.Context) model.NetworkState
	EnsureCorrectNetwork(ctx context.Context) error
}

type RewardPolicy interface {
	RewardFor(ctx context.Context, cat model.Category, account common.Address) (uint64, error)
	HasCompletedCategory(ctx context.Context, cat model.Category, account common.Address) (bool, error)
	Remember(ctx context.Context, account common.Address, id model.ActionId)
	FirstTimeReward() uint64
	RepeatReward() uint64
}

// Journal receives every ledger write, first when it is submitted and again
// once it resolved. Failures are logged and never affect the write.
type Journal interface {
	Submitted(ctx context.Context, entry *model.JournalEntry) error
	Resolved(ctx context.Context, entry *model.JournalEntry) error
}

type Deps struct {
	Ledger   ledger.Client
	Guard    NetworkGuard
	Registry *registry.Registry
	Rewards  RewardPolicy
	Journal  Journal // optional
	Account  common.Address
	Logger   *zap.Logger
}

type write struct {
	id   model.ActionId
	kind model.WriteKind
}

type plan struct {
	gen    uint64
	writes []write
	result *ToggleResult
}

// Reconciler owns the local view of a stage's actions and keeps it in line
// with the ledger. All state sits behind one mutex that is never held across
// ledger calls.
type Reconciler struct {
	cfg     Config
	ledger  ledger.Client
	guard   NetworkGuard
	reg     *registry.Registry
	rewards RewardPolicy
	journal Journal
	account common.Address
	logger  *zap.Logger

	lock           sync.Mutex
	gen            uint64
	reads          uint64 // last read ticket issued
	stageIndex     int
	stage          model.Stage
	entries        map[model.ActionId]*entry
	pending        map[model.ActionId]struct{}
	balance        *model.Balance
	totalCompleted *uint64
	history        map[model.Category]bool
	network        model.NetworkState
	lastErr        *ViewError
	celebrateUntil time.Time
	timers         map[uint64]*time.Timer
	nextTimer      uint64
	closed         bool
	wg             sync.WaitGroup

	subLock    sync.Mutex
	subs       map[int]chan Event
	nextSub    int
	subsClosed bool
}

func New(cfg Config, deps Deps) (*Reconciler, error) {
	if deps.Ledger == nil || deps.Guard == nil || deps.Registry == nil || deps.Rewards == nil {
		return nil, fmt.Errorf("reconciler needs a ledger, guard, registry and reward policy")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := &Reconciler{
		cfg:     cfg,
		ledger:  deps.Ledger,
		guard:   deps.Guard,
		reg:     deps.Registry,
		rewards: deps.Rewards,
		journal: deps.Journal,
		account: deps.Account,
		logger:  deps.Logger.With(zap.String("component", "reconciler")),
		history: map[model.Category]bool{},
		timers:  map[uint64]*time.Timer{},
		subs:    map[int]chan Event{},
	}
	if err := r.loadStage(0); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reconciler) Account() common.Address {
	return r.account
}

// loadStage resets every per action field for stage i. Must hold lock.
func (r *Reconciler) loadStage(i int) error {
	stage, err := r.reg.Stage(i)
	if err != nil {
		return err
	}
	r.gen++
	r.stageIndex = i
	r.stage = stage
	r.entries = map[model.ActionId]*entry{}
	for _, id := range registry.AllActions(stage) {
		r.entries[id] = newEntry()
	}
	r.pending = map[model.ActionId]struct{}{}
	r.lastErr = nil
	return nil
}

// blocked reports whether a toggle of id has to wait for an in-flight write.
// Must hold lock.
func (r *Reconciler) blocked(id model.ActionId) bool {
	if r.cfg.LockPolicy == LockGlobal {
		return len(r.pending) > 0
	}
	_, ok := r.pending[id]
	return ok
}

// writesFor decides which ledger writes flipping id to target needs, an
// empty result means the change stays local. Must hold lock.
func (r *Reconciler) writesFor(id model.ActionId, target bool) []write {
	kind := model.WriteComplete
	if !target {
		kind = model.WriteUncomplete
	}
	if r.cfg.WriteMode != WriteCategoryGated {
		return []write{{id: id, kind: kind}}
	}
	e := r.entries[id]
	if !target {
		if e.confirmedTrue() {
			return []write{{id: id, kind: kind}}
		}
		return nil
	}
	ids := registry.ActionsForStage(r.stage)[id.Category()]
	for _, other := range ids {
		if other != id && !r.entries[other].effective() {
			return nil
		}
	}
	var writes []write
	for _, other := range ids {
		if !r.entries[other].confirmedTrue() {
			writes = append(writes, write{id: other, kind: model.WriteComplete})
		}
	}
	return writes
}

// Toggle flips an action of the current stage and blocks until the ledger
// resolved the write, if one was needed.
func (r *Reconciler) Toggle(ctx context.Context, id model.ActionId) (*ToggleResult, error) {
	p, res, err := r.prepare(ctx, id)
	if err != nil || p == nil {
		return res, err
	}
	return r.dispatch(ctx, p)
}

// ToggleAsync applies the optimistic update and returns, the ledger write
// continues in the background. The outcome is reported through events and
// the view.
func (r *Reconciler) ToggleAsync(ctx context.Context, id model.ActionId) (*ToggleResult, error) {
	p, res, err := r.prepare(ctx, id)
	if err != nil || p == nil {
		return res, err
	}
	bg := context.WithoutCancel(ctx)
	if !r.goBackground(func() { r.dispatch(bg, p) }) {
		r.abandon(p)
		return nil, ErrClosed
	}
	res.Dispatched = true
	return res, nil
}

func (r *Reconciler) prepare(ctx context.Context, id model.ActionId) (*plan, *ToggleResult, error) {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return nil, nil, ErrClosed
	}
	e, ok := r.entries[id]
	if !ok {
		stage := r.stageIndex
		r.lock.Unlock()
		RecordToggle(outcomeRejected)
		return nil, nil, errors.Wrapf(model.ErrUnknownAction, "%s in stage %d", id, stage)
	}
	if r.blocked(id) {
		r.lock.Unlock()
		RecordToggle(outcomeSkipped)
		return nil, &ToggleResult{ActionId: id, Value: e.effective(), Skipped: true}, nil
	}
	target := !e.effective()
	res := &ToggleResult{ActionId: id, Value: target}
	writes := r.writesFor(id, target)
	if len(writes) == 0 {
		if target {
			e.setLocal(true)
		} else {
			e.clearLocal()
		}
		r.lock.Unlock()
		RecordToggle(outcomeLocal)
		res.LocalOnly = true
		return nil, res, nil
	}
	p := &plan{gen: r.gen, writes: writes, result: res}
	for _, w := range writes {
		r.pending[w.id] = struct{}{}
	}
	r.lock.Unlock()

	// the chain is checked before anything optimistic becomes visible
	network := r.guard.State(ctx)

	r.lock.Lock()
	r.network = network
	if p.gen != r.gen {
		r.lock.Unlock()
		RecordToggle(outcomeStale)
		res.Stale = true
		return nil, res, nil
	}
	if !network.IsCorrect {
		for _, w := range writes {
			delete(r.pending, w.id)
		}
		var err error
		if network.CurrentChainId == nil {
			err = errors.Wrap(model.ErrConnectivity, "active chain unavailable")
		} else {
			err = errors.Wrapf(model.ErrChainMismatch, "active chain %s, required %s",
				network.CurrentChainId, network.RequiredChainId)
		}
		kind := model.KindOf(err)
		e.fail(kind)
		r.lastErr = &ViewError{ActionId: id, Kind: kind, Message: err.Error()}
		res.Value = e.value
		stage := r.stageIndex
		r.lock.Unlock()

		if kind == model.KindNetworkMismatch {
			RecordToggle(outcomeSwitch)
			r.logger.Info("write blocked by network mismatch", zap.String("action", string(id)))
			r.emit(Event{Type: EventSwitchRequired, ActionId: id, Kind: kind, Message: err.Error(), Stage: stage})
			res.NeedsNetworkSwitch = true
			return nil, res, nil
		}
		RecordToggle(outcomeFailed)
		r.emit(Event{Type: EventWriteFailed, ActionId: id, Kind: kind, Message: err.Error(), Stage: stage})
		return nil, nil, err
	}
	for _, w := range writes {
		r.entries[w.id].setLocal(w.kind == model.WriteComplete)
		if r.lastErr != nil && r.lastErr.ActionId == w.id {
			r.lastErr = nil
		}
	}
	r.lock.Unlock()
	return p, res, nil
}

// abandon undoes a prepared plan that will never be dispatched
func (r *Reconciler) abandon(p *plan) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if p.gen != r.gen {
		return
	}
	for _, w := range p.writes {
		delete(r.pending, w.id)
		r.entries[w.id].clearLocal()
	}
}

func (r *Reconciler) dispatch(ctx context.Context, p *plan) (*ToggleResult, error) {
	res := p.result
	for i, w := range p.writes {
		var reward uint64
		if w.kind == model.WriteComplete {
			reward = r.rewardFor(ctx, w.id)
		}
		err := r.write(ctx, w, reward)

		r.lock.Lock()
		if p.gen != r.gen {
			r.lock.Unlock()
			r.discard(w, err)
			RecordToggle(outcomeStale)
			res.Stale = true
			return res, nil
		}
		delete(r.pending, w.id)
		e := r.entries[w.id]
		stage := r.stageIndex
		if err != nil {
			kind := model.KindOf(err)
			e.revert(kind)
			for _, rest := range p.writes[i+1:] {
				// the rest of a gated batch goes back to local intent
				delete(r.pending, rest.id)
				r.entries[rest.id].setLocal(rest.kind == model.WriteComplete)
			}
			r.lastErr = &ViewError{ActionId: w.id, Kind: kind, Message: err.Error()}
			r.lock.Unlock()

			RecordToggle(outcomeFailed)
			r.logger.Warn("ledger write failed", zap.String("action", string(w.id)),
				zap.String("kind", string(w.kind)), zap.Error(err))
			r.emit(Event{Type: EventWriteFailed, ActionId: w.id, Kind: kind, Message: err.Error(), Stage: stage})
			return res, err
		}
		completed := w.kind == model.WriteComplete
		e.confirm(completed)
		if completed {
			r.history[w.id.Category()] = true
			r.celebrateUntil = time.Now().Add(r.cfg.CelebrationDuration)
		}
		r.lock.Unlock()

		res.Written = append(res.Written, w.id)
		r.emit(Event{Type: EventConfirmed, ActionId: w.id, Value: completed, Stage: stage})
		if completed {
			r.rewards.Remember(ctx, r.account, w.id)
			res.Reward += reward
			r.emit(Event{Type: EventCelebrate, ActionId: w.id, Value: true, Reward: reward,
				Stage: stage, Duration: r.cfg.CelebrationDuration})
		}
		r.scheduleSettle(w.id)
	}
	RecordToggle(outcomeWritten)
	return res, nil
}

// rewardFor is only informative, a failed read never blocks the write
func (r *Reconciler) rewardFor(ctx context.Context, id model.ActionId) uint64 {
	reward, err := r.rewards.RewardFor(ctx, id.Category(), r.account)
	if err != nil {
		r.logger.Warn("failed computing reward tier", zap.String("action", string(id)), zap.Error(err))
		return 0
	}
	return reward
}

func (r *Reconciler) write(ctx context.Context, w write, reward uint64) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
	defer cancel()

	entry := model.NewJournalEntry(r.account.Hex(), w.id, w.kind, reward)
	start := time.Now()
	var handle *ledger.TransactionHandle
	var err error
	if w.kind == model.WriteComplete {
		handle, err = r.ledger.SubmitCompletion(wctx, r.account, w.id)
	} else {
		handle, err = r.ledger.SubmitUncompletion(wctx, r.account, w.id)
	}
	if err == nil {
		entry.TxHash = handle.Hash.Hex()
		r.logger.Info("submitted ledger write", zap.String("action", string(w.id)),
			zap.String("kind", string(w.kind)), zap.String("tx", entry.TxHash))
		r.journalSubmitted(entry)
		err = r.ledger.AwaitConfirmation(wctx, handle)
	}
	RecordWrite(w.kind, err, time.Since(start))

	entry.Status = model.JournalStatusConfirmed
	if err != nil {
		entry.Status = model.JournalStatusError
		entry.Error = err.Error()
	}
	entry.Updated = time.Now().UTC()
	if entry.TxHash == "" {
		r.journalSubmitted(entry)
	} else {
		r.journalResolved(entry)
	}
	return err
}

func (r *Reconciler) journalSubmitted(entry *model.JournalEntry) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.journal.Submitted(ctx, entry); err != nil {
		r.logger.Warn("failed journaling write", zap.String("action", string(entry.ActionId)), zap.Error(err))
	}
}

func (r *Reconciler) journalResolved(entry *model.JournalEntry) {
	if r.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.journal.Resolved(ctx, entry); err != nil {
		r.logger.Warn("failed journaling write result", zap.String("action", string(entry.ActionId)), zap.Error(err))
	}
}

// discard drops a result that belongs to an older stage session. A confirmed
// write for an id that is also part of the current stage is re-read so the
// current view converges on it.
func (r *Reconciler) discard(w write, err error) {
	RecordStale()
	r.logger.Debug("discarding stale write result", zap.String("action", string(w.id)))
	if err != nil {
		return
	}
	r.lock.Lock()
	_, inStage := r.entries[w.id]
	gen := r.gen
	r.lock.Unlock()
	if !inStage {
		return
	}
	r.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
		defer cancel()
		r.requery(ctx, gen, w.id)
	})
}

// goBackground runs fn on a goroutine that Close waits for. It returns false
// once the reconciler is closed.
func (r *Reconciler) goBackground(fn func()) bool {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return false
	}
	r.wg.Add(1)
	r.lock.Unlock()
	go func() {
		defer r.wg.Done()
		fn()
	}()
	return true
}

// scheduleSettle refetches the balance and the written ids once the ledger
// had time to settle. Never awaited by the writer.
func (r *Reconciler) scheduleSettle(ids ...model.ActionId) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return
	}
	timerId := r.nextTimer
	r.nextTimer++
	r.timers[timerId] = time.AfterFunc(r.cfg.SettleDelay, func() {
		r.settle(timerId, ids)
	})
}

func (r *Reconciler) settle(timerId uint64, ids []model.ActionId) {
	r.lock.Lock()
	delete(r.timers, timerId)
	if r.closed {
		r.lock.Unlock()
		return
	}
	r.wg.Add(1)
	gen := r.gen
	r.lock.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()
	r.refreshTotals(ctx)
	r.requery(ctx, gen, ids...)
}

func (r *Reconciler) refreshTotals(ctx context.Context) {
	bal, err := r.ledger.Balance(ctx, r.account)
	if err != nil {
		r.logger.Warn("failed refreshing balance", zap.Error(err))
	} else {
		r.lock.Lock()
		r.balance = &bal
		stage := r.stageIndex
		r.lock.Unlock()
		r.emit(Event{Type: EventBalanceUpdated, Balance: bal.String(), Stage: stage})
	}
	total, err := r.ledger.TotalActionsCompleted(ctx, r.account)
	if err != nil {
		r.logger.Warn("failed refreshing total completed", zap.Error(err))
		return
	}
	r.lock.Lock()
	r.totalCompleted = &total
	r.lock.Unlock()
}

func (r *Reconciler) requery(ctx context.Context, gen uint64, ids ...model.ActionId) {
	r.lock.Lock()
	ticket, versions := r.beginRead(ids)
	r.lock.Unlock()
	for i, id := range ids {
		rec, err := r.ledger.CompletionStatus(ctx, r.account, id)
		if err != nil {
			r.logger.Warn("failed re-reading action", zap.String("action", string(id)), zap.Error(err))
			continue
		}
		r.lock.Lock()
		if gen != r.gen {
			r.lock.Unlock()
			RecordStale()
			return
		}
		r.applyRead(id, rec, ticket, versions[i])
		r.lock.Unlock()
	}
}

// beginRead issues a read ticket and snapshots the entry versions of ids.
// Must hold the lock.
func (r *Reconciler) beginRead(ids []model.ActionId) (uint64, []uint64) {
	r.reads++
	versions := make([]uint64, len(ids))
	for i, id := range ids {
		if e, ok := r.entries[id]; ok {
			versions[i] = e.version
		}
	}
	return r.reads, versions
}

// applyRead merges a ledger read unless the entry moved since the read was
// issued: a write is pending, a local mutation happened, or a later read
// was applied already. Must hold the lock.
func (r *Reconciler) applyRead(id model.ActionId, rec model.CompletionRecord, ticket, version uint64) {
	e, ok := r.entries[id]
	if !ok || e.version != version || e.readAt > ticket {
		return
	}
	if _, pending := r.pending[id]; pending {
		return
	}
	e.readAt = ticket
	e.applyRecord(rec)
}

// Refresh re-reads every action of the stage, the balance and the category
// history. Reads that fail leave their fields as they were; the first error
// is returned after every read finished.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.lock.Lock()
	gen := r.gen
	ids := registry.AllActions(r.stage)
	ticket, versions := r.beginRead(ids)
	r.lock.Unlock()

	network := r.guard.State(ctx)

	records := make([]model.CompletionRecord, len(ids))
	read := make([]bool, len(ids))
	history := make([]bool, len(model.Categories))
	var balance *model.Balance
	var total *uint64

	var g errgroup.Group
	g.SetLimit(refreshConcurrency)
	for i, id := range ids {
		i, id := i, id // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			rec, err := r.ledger.CompletionStatus(ctx, r.account, id)
			if err != nil {
				r.logger.Warn("failed reading action status", zap.String("action", string(id)), zap.Error(err))
				return errors.Wrapf(err, "failed reading %s", id)
			}
			records[i] = rec
			read[i] = true
			return nil
		})
	}
	g.Go(func() error {
		bal, err := r.ledger.Balance(ctx, r.account)
		if err != nil {
			r.logger.Warn("failed reading balance", zap.Error(err))
			return errors.Wrap(err, "failed reading balance")
		}
		balance = &bal
		return nil
	})
	g.Go(func() error {
		t, err := r.ledger.TotalActionsCompleted(ctx, r.account)
		if err != nil {
			r.logger.Warn("failed reading total completed", zap.Error(err))
			return errors.Wrap(err, "failed reading total completed")
		}
		total = &t
		return nil
	})
	for i, cat := range model.Categories {
		i, cat := i, cat // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			done, err := r.rewards.HasCompletedCategory(ctx, cat, r.account)
			if err != nil {
				r.logger.Warn("failed reading category history", zap.String("category", string(cat)), zap.Error(err))
				return errors.Wrapf(err, "failed reading %s history", cat)
			}
			history[i] = done
			return nil
		})
	}
	err := g.Wait()

	r.lock.Lock()
	r.network = network
	if gen != r.gen {
		r.lock.Unlock()
		RecordStale()
		return err
	}
	for i, id := range ids {
		if read[i] {
			r.applyRead(id, records[i], ticket, versions[i])
		}
	}
	for i, cat := range model.Categories {
		if history[i] {
			r.history[cat] = true
		}
	}
	if balance != nil {
		r.balance = balance
	}
	if total != nil {
		r.totalCompleted = total
	}
	stage := r.stageIndex
	r.lock.Unlock()

	if balance != nil {
		r.emit(Event{Type: EventBalanceUpdated, Balance: balance.String(), Stage: stage})
	}
	return err
}

// SelectStage starts a new stage session. Everything tracked for the old one
// is dropped and results still in flight for it are discarded.
func (r *Reconciler) SelectStage(ctx context.Context, index int) error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return ErrClosed
	}
	if err := r.loadStage(index); err != nil {
		r.lock.Unlock()
		return err
	}
	r.lock.Unlock()

	r.logger.Info("stage selected", zap.Int("stage", index))
	r.emit(Event{Type: EventStageChanged, Stage: index})
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("stage refresh incomplete", zap.Int("stage", index), zap.Error(err))
	}
	return nil
}

// Reset goes back to the first stage
func (r *Reconciler) Reset(ctx context.Context) error {
	return r.SelectStage(ctx, 0)
}

// SwitchNetwork asks the guard to move to the required chain. On success the
// network mismatch errors of the stage are cleared.
func (r *Reconciler) SwitchNetwork(ctx context.Context) error {
	err := r.guard.EnsureCorrectNetwork(ctx)
	network := r.guard.State(ctx)
	r.lock.Lock()
	defer r.lock.Unlock()
	r.network = network
	if err != nil {
		return err
	}
	for id, e := range r.entries {
		if e.status == StatusError && e.errKind == model.KindNetworkMismatch {
			e.clearLocal()
			if r.lastErr != nil && r.lastErr.ActionId == id {
				r.lastErr = nil
			}
		}
	}
	return nil
}

// DismissError clears a transient error, the action shows its last known
// value again
func (r *Reconciler) DismissError(id model.ActionId) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return errors.Wrapf(model.ErrUnknownAction, "%s in stage %d", id, r.stageIndex)
	}
	if e.status == StatusError {
		e.clearLocal()
	}
	if r.lastErr != nil && r.lastErr.ActionId == id {
		r.lastErr = nil
	}
	return nil
}

func (r *Reconciler) View() ViewModel {
	r.lock.Lock()
	defer r.lock.Unlock()

	vm := ViewModel{
		Account:         r.account.Hex(),
		StageIndex:      r.stageIndex,
		StageCount:      r.reg.Len(),
		StageTitle:      r.stage.Title,
		Stage:           r.stage,
		TotalActions:    len(r.entries),
		Actions:         make(map[model.ActionId]ActionState, len(r.entries)),
		IsLoading:       len(r.pending) > 0,
		Network:         r.network,
		CategoryHistory: make(map[model.Category]bool, len(model.Categories)),
		NextReward:      make(map[model.Category]uint64, len(model.Categories)),
		Celebrating:     time.Now().Before(r.celebrateUntil),
	}
	for id, e := range r.entries {
		_, pending := r.pending[id]
		vm.Actions[id] = e.state(pending)
		if e.countsTrue() {
			vm.CompletedCount++
		}
	}
	vm.ProgressPercent = progress(vm.CompletedCount, vm.TotalActions)
	vm.BadgeUnlocked = vm.TotalActions > 0 && vm.CompletedCount == vm.TotalActions
	if r.balance != nil {
		vm.Balance = r.balance.String()
		vm.BalanceWhole = r.balance.Whole()
	}
	if r.totalCompleted != nil {
		total := *r.totalCompleted
		vm.TotalCompleted = &total
	}
	for _, cat := range model.Categories {
		done := r.history[cat]
		vm.CategoryHistory[cat] = done
		if done {
			vm.NextReward[cat] = r.rewards.RepeatReward()
		} else {
			vm.NextReward[cat] = r.rewards.FirstTimeReward()
		}
	}
	if r.lastErr != nil {
		lastErr := *r.lastErr
		vm.LastError = &lastErr
	}
	return vm
}

func progress(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Min(100, 100*float64(done)/float64(total))
}

// Close stops scheduled refetches and waits for background work. Event
// channels are closed afterwards.
func (r *Reconciler) Close() {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return
	}
	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.lock.Unlock()
	r.wg.Wait()
	r.closeSubscribers()
}
