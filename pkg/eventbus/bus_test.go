package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutSynchronously(t *testing.T) {
	bus := New()
	var received []string

	bus.Subscribe(TopicRoundCreated, func(payload interface{}) {
		received = append(received, "a:"+payload.(string))
	})
	bus.Subscribe(TopicRoundCreated, func(payload interface{}) {
		received = append(received, "b:"+payload.(string))
	})

	bus.Publish(TopicRoundCreated, "round-1")

	assert.ElementsMatch(t, []string{"a:round-1", "b:round-1"}, received)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	calls := 0

	unsub := bus.Subscribe(TopicRoundEnded, func(interface{}) { calls++ })
	bus.Publish(TopicRoundEnded, nil)
	unsub()
	bus.Publish(TopicRoundEnded, nil)

	assert.Equal(t, 1, calls)
}

func TestPublishRecoversFromPanickingHandler(t *testing.T) {
	bus := New()
	calledSecond := false

	bus.Subscribe(TopicLeaderboardUpdate, func(interface{}) { panic("boom") })
	bus.Subscribe(TopicLeaderboardUpdate, func(interface{}) { calledSecond = true })

	assert.NotPanics(t, func() { bus.Publish(TopicLeaderboardUpdate, nil) })
	assert.True(t, calledSecond)
}

func TestEncodeRoundTrips(t *testing.T) {
	type snapshot struct {
		Rank int
		Name string
	}
	raw, err := Encode(snapshot{Rank: 1, Name: "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
