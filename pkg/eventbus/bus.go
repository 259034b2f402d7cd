// Package eventbus implements the Event Bus (spec §4.7): an in-process publish-
// subscribe mechanism over named topics, with synchronous fan-out. Every payload is
// additionally available msgpack-encoded via Bus.Encode, so the out-of-scope push
// transport can serialize events leaving the process without the bus itself needing
// to know anything about that transport — the same encode-at-the-boundary shape the
// teacher uses for its Redis hash caching helpers in internal/persistence/engine.
package eventbus

import (
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeromicro/go-zero/core/logx"
)

// Topic names the five events the round engine emits (spec §4.6/§4.7/§6).
type Topic string

const (
	TopicRoundCreated      Topic = "roundCreated"
	TopicParticipantJoined Topic = "participantJoined"
	TopicRoundStarted      Topic = "roundStarted"
	TopicRoundEnded        Topic = "roundEnded"
	TopicLeaderboardUpdate Topic = "leaderboard_update"
)

// Handler receives a topic's published payload. Fan-out is synchronous: Publish does
// not return until every subscriber's Handler has run. A handler that wants to do
// slow work must buffer internally (spawn its own goroutine) rather than block
// Publish's caller.
type Handler func(payload interface{})

// Bus is a minimal observer over typed topics.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]Handler)}
}

// Subscribe registers handler on topic. Returns an unsubscribe func.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], handler)
	idx := len(b.subs[topic]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subs[topic]
		if idx >= len(handlers) {
			return
		}
		b.subs[topic] = append(handlers[:idx], handlers[idx+1:]...)
	}
}

// Publish synchronously fans payload out to every subscriber of topic. A panicking
// handler is recovered and logged so one bad subscriber cannot take down the
// publisher or starve the remaining subscribers.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[topic]))
	copy(handlers, b.subs[topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					logx.Errorf("eventbus: subscriber to topic=%s panicked: %v", topic, r)
				}
			}()
			h(payload)
		}(h)
	}
}

// Encode msgpack-encodes payload for handoff to the out-of-scope push transport.
func Encode(payload interface{}) ([]byte, error) {
	return msgpack.Marshal(payload)
}
