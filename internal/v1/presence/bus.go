package presence

import "sync"

// busCapacity bounds each subscriber's backlog (spec §5 recommends 256). A
// session that falls behind (slow network write, stalled client) loses its
// oldest buffered events rather than block the publisher or grow without
// limit.
const busCapacity = 256

// Bus is a bounded, lossy fan-out of string-encoded events to any number of
// subscribers, grounded on other_examples' Eggwite-Tether PresenceStore
// (watchers map + select/default broadcast). It backs each room's event
// channel and the process-wide bus the web variant forwards (which carries
// VISITOR_OFFLINE), where every subscriber should see the same stream and a
// slow reader must never stall the others.
type Bus struct {
	mu       sync.Mutex
	next     int
	watchers map[int]chan string
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{watchers: make(map[int]chan string)}
}

// Subscribe registers a new watcher and returns its channel plus an
// unsubscribe function. The returned function is idempotent.
func (b *Bus) Subscribe() (<-chan string, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan string, busCapacity)
	b.watchers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish fans event out to every subscriber. A subscriber whose buffer is
// full has its oldest queued event discarded to make room, so the newest
// event is always the one delivered; publishing never blocks on a slow
// reader.
func (b *Bus) Publish(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.watchers {
		for {
			select {
			case ch <- event:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers reports the current watcher count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}
