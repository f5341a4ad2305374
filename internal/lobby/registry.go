package lobby

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single SSE payload pushed to lobby subscribers. Type
// distinguishes player_joined/player_left/lobby_starting/game_started/
// lobby_closed; Data is marshaled as the event's JSON body.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// subscriber is one connected SSE client. ch is buffered so Broadcast
// never blocks on a slow reader; a full channel means the reader has
// stalled and gets evicted instead.
type subscriber struct {
	id string
	ch chan Event
}

const subscriberBufferSize = 16

// Registry is the C9 fan-out component: a mutex-protected map of
// per-lobby subscriber lists. It is owned by one Service instance, never
// exposed as a package-level singleton.
type Registry struct {
	mu   sync.Mutex
	subs map[string][]*subscriber
}

// NewRegistry returns an empty fan-out registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string][]*subscriber)}
}

// Subscribe registers a new listener for lobbyID and returns a channel
// of events plus an unsubscribe func the caller must invoke when the
// connection closes.
func (r *Registry) Subscribe(lobbyID string) (<-chan Event, func()) {
	r.mu.Lock()
	sub := &subscriber{id: uuid.New().String(), ch: make(chan Event, subscriberBufferSize)}
	r.subs[lobbyID] = append(r.subs[lobbyID], sub)
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.subs[lobbyID]
		for i, s := range list {
			if s == sub {
				r.subs[lobbyID] = append(list[:i], list[i+1:]...)
				close(s.ch)
				break
			}
		}
		if len(r.subs[lobbyID]) == 0 {
			delete(r.subs, lobbyID)
		}
	}
	return sub.ch, unsubscribe
}

// Broadcast fans an event out to every subscriber of lobbyID. A
// subscriber whose buffer is full is dropped rather than allowed to
// stall the broadcast for everyone else.
func (r *Registry) Broadcast(lobbyID string, event Event) {
	r.mu.Lock()
	list := append([]*subscriber(nil), r.subs[lobbyID]...)
	r.mu.Unlock()

	var stale []*subscriber
	for _, s := range list {
		select {
		case s.ch <- event:
		default:
			stale = append(stale, s)
		}
	}
	if len(stale) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.subs[lobbyID][:0]
	for _, s := range r.subs[lobbyID] {
		dropped := false
		for _, st := range stale {
			if st == s {
				dropped = true
				break
			}
		}
		if dropped {
			close(s.ch)
			continue
		}
		remaining = append(remaining, s)
	}
	if len(remaining) == 0 {
		delete(r.subs, lobbyID)
	} else {
		r.subs[lobbyID] = remaining
	}
}

// SubscriberCount reports how many clients are currently attached to a
// lobby's event stream.
func (r *Registry) SubscriberCount(lobbyID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[lobbyID])
}

// MarshalSSE renders an Event as a single "data: ...\n\n" SSE frame.
func MarshalSSE(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := append([]byte("data: "), body...)
	out = append(out, '\n', '\n')
	return out, nil
}

// HeartbeatComment is the SSE comment line sent on the heartbeat tick to
// keep intermediaries from closing idle connections.
func HeartbeatComment() []byte {
	return []byte(": heartbeat " + time.Now().UTC().Format(time.RFC3339) + "\n\n")
}
