package gate

import (
	"context"
	"sync"

	"go.dedis.ch/sequencer/core/ordering/types"
)

// observer is a subscriber of the proposals released by the gate.
type observer struct {
	ctx    context.Context
	events chan types.Proposal
}

// notify pushes the proposal to the subscriber. It blocks until the subscriber
// reads it or leaves.
func (o *observer) notify(p types.Proposal) {
	select {
	case o.events <- p:
	case <-o.ctx.Done():
	}
}

// watcher maintains the list of subscribers and notifies them in no particular
// order.
type watcher struct {
	sync.RWMutex

	observers map[*observer]struct{}
}

func newWatcher() *watcher {
	return &watcher{
		observers: make(map[*observer]struct{}),
	}
}

func (w *watcher) add(o *observer) {
	w.Lock()
	w.observers[o] = struct{}{}
	w.Unlock()
}

// remove removes the observer. No notification is sent to the observer after
// the function returns.
func (w *watcher) remove(o *observer) {
	w.Lock()
	delete(w.observers, o)
	w.Unlock()
}

func (w *watcher) len() int {
	w.RLock()
	defer w.RUnlock()

	return len(w.observers)
}

func (w *watcher) notify(p types.Proposal) {
	w.RLock()
	defer w.RUnlock()

	for o := range w.observers {
		o.notify(p)
	}
}
