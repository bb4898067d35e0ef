package player

import (
	"encoding/json"
	"testing"

	"castplayd/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_DeliversInOrder(t *testing.T) {
	var n Notifier
	var got []Kind
	n.Subscribe(func(evt Notification) { got = append(got, evt.Kind) })

	n.enqueue(positionNotification(HeadJump, models.Position{Index: 1}))
	n.enqueue(rateNotification(RateChange, 0, 1))
	n.enqueue(positionNotification(FrameAdvance, models.Position{Index: 2}))
	n.flush()

	assert.Equal(t, []Kind{HeadJump, RateChange, FrameAdvance}, got)
}

func TestNotifier_ReentrantEnqueueIsQueued(t *testing.T) {
	var n Notifier
	var got []Kind
	n.Subscribe(func(evt Notification) {
		got = append(got, evt.Kind)
		if evt.Kind == FrameAdvance {
			n.enqueue(rateNotification(RateChange, 1, 0))
			n.flush()
			got = append(got, 0)
		}
	})

	n.enqueue(positionNotification(FrameAdvance, models.Position{}))
	n.flush()

	assert.Equal(t, []Kind{FrameAdvance, 0, RateChange}, got, "nested flush defers to the running one")
}

func TestNotifier_Unsubscribe(t *testing.T) {
	var n Notifier
	var a, b int
	unsubA := n.Subscribe(func(Notification) { a++ })
	n.Subscribe(func(Notification) { b++ })

	n.enqueue(rateNotification(DesiredRateChange, 1, 2))
	n.flush()
	unsubA()
	unsubA()
	n.enqueue(rateNotification(DesiredRateChange, 2, 4))
	n.flush()

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestNotification_JSON(t *testing.T) {
	out, err := json.Marshal(rateNotification(RateChange, 0, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"rate change","rate":{"oldRate":0,"newRate":2}}`, string(out))

	assert.Equal(t, "unknown", Kind(0).String())
}
