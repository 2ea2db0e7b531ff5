package sync

// RecordUpdateFunc receives the id of a record whose local copy the engine
// just changed during a pull, so collaborators can refresh any cached view.
type RecordUpdateFunc func(id int64)

// Subscribe registers fn for record-updated notifications and returns an
// unsubscribe function.
//
// Contract: one notification per converged record id per cycle, delivered
// at-least-once, with no ordering guarantee across ids. Notifications are
// delivered synchronously from the cycle goroutine, so fn must not block and
// must not call back into the engine's synchronous cycle entry points.
func (e *Engine) Subscribe(fn RecordUpdateFunc) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subs, id)
	}
}

// notifyRecordUpdated fans a converged record id out to all subscribers.
func (e *Engine) notifyRecordUpdated(id int64) {
	e.subMu.Lock()
	fns := make([]RecordUpdateFunc, 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}
