package repo

import "sync"

// changeHub fans out "owner changed" signals to watchers. Each watcher has a
// one-slot channel, so bursts of writes collapse into a single wake-up.
type changeHub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newChangeHub() *changeHub {
	return &changeHub{subs: make(map[string]map[chan struct{}]struct{})}
}

func (h *changeHub) subscribe(ownerID string) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[chan struct{}]struct{})
	}
	h.subs[ownerID][ch] = struct{}{}
	return ch
}

func (h *changeHub) unsubscribe(ownerID string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[ownerID], ch)
	if len(h.subs[ownerID]) == 0 {
		delete(h.subs, ownerID)
	}
}

func (h *changeHub) notify(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
