package reconciler

import (
	"time"

	"go.uber.org/zap"
)

const eventBuffer = 64

// Subscribe returns a channel of events and a func that cancels the
// subscription. Slow subscribers lose events, they never block writes.
func (r *Reconciler) Subscribe() (<-chan Event, func()) {
	r.subLock.Lock()
	defer r.subLock.Unlock()
	ch := make(chan Event, eventBuffer)
	if r.subsClosed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	return ch, func() {
		r.subLock.Lock()
		defer r.subLock.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

func (r *Reconciler) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.subLock.Lock()
	defer r.subLock.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.logger.Debug("dropping event for slow subscriber", zap.String("event", string(ev.Type)))
		}
	}
}

func (r *Reconciler) closeSubscribers() {
	r.subLock.Lock()
	defer r.subLock.Unlock()
	r.subsClosed = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}
