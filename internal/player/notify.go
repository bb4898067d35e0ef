package player

import (
	"sync"

	"castplayd/internal/models"
)

// Kind identifies a notification variant.
type Kind int

const (
	FrameAdvance Kind = iota + 1
	HeadJump
	RateChange
	DesiredRateChange
)

func (k Kind) String() string {
	switch k {
	case FrameAdvance:
		return "frame advance"
	case HeadJump:
		return "head jump"
	case RateChange:
		return "rate change"
	case DesiredRateChange:
		return "desired rate change"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Notification is one event published by a Player. Position is set for FrameAdvance and HeadJump,
// Rate for RateChange and DesiredRateChange.
type Notification struct {
	Kind     Kind               `json:"type"`
	Position *models.Position   `json:"position,omitempty"`
	Rate     *models.RateChange `json:"rate,omitempty"`
}

// Subscriber receives notifications. Deliveries never overlap.
type Subscriber func(Notification)

type subscription struct {
	id int
	fn Subscriber
}

// Notifier fans notifications out to subscribers. Notifications are queued in the order the
// player emits them and delivered by whichever caller gets to flush first, one at a time.
// A subscriber may call back into the player; the resulting notifications are delivered after
// the current one.
//
// A player call therefore does not wait for its own notifications when another goroutine, such as
// the frame timer, is already delivering: Pause may return before the rate change it caused, or an
// earlier frame advance, reaches subscribers. Delivery order is still emission order.
type Notifier struct {
	mu       sync.Mutex
	subs     []subscription
	nextID   int
	queue    []Notification
	draining bool
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn Subscriber) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

func (n *Notifier) enqueue(evt Notification) {
	n.mu.Lock()
	n.queue = append(n.queue, evt)
	n.mu.Unlock()
}

func (n *Notifier) flush() {
	n.mu.Lock()
	if n.draining {
		n.mu.Unlock()
		return
	}
	n.draining = true

	for len(n.queue) > 0 {
		evt := n.queue[0]
		n.queue = n.queue[1:]
		subs := append([]subscription(nil), n.subs...)
		n.mu.Unlock()

		for _, s := range subs {
			s.fn(evt)
		}

		n.mu.Lock()
	}

	n.draining = false
	n.mu.Unlock()
}

func positionNotification(kind Kind, pos models.Position) Notification {
	return Notification{Kind: kind, Position: &pos}
}

func rateNotification(kind Kind, oldRate, newRate float64) Notification {
	return Notification{Kind: kind, Rate: &models.RateChange{OldRate: oldRate, NewRate: newRate}}
}
