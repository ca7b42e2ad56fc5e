package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AdventureEngine/internal/navigator"
)

// Topic suffixes used for remote fades.
const (
	TopicTransitionRequest = "transition/request"
	TopicTransitionAck     = "transition/ack"
)

const (
	PhaseFadeOut = "fade_out"
	PhaseFadeIn  = "fade_in"
)

// AckTimeoutError indicates the presentation layer never confirmed a fade.
type AckTimeoutError struct {
	Phase string
}

func (e *AckTimeoutError) Error() string {
	return "mqtt transition ack timeout: " + e.Phase
}

type transitionMessage struct {
	Phase string `json:"phase"`
	Seq   uint64 `json:"seq"`
}

// RemoteTransition asks the presentation layer to run fades and blocks until
// it acknowledges each one. When the request cannot be published the
// fallback wait is used instead.
type RemoteTransition struct {
	pub      Publisher
	cfg      Config
	fallback navigator.TimedTransition

	mu      sync.Mutex
	seq     uint64
	waiting map[uint64]chan struct{}
}

func NewRemoteTransition(pub Publisher, cfg Config) *RemoteTransition {
	return &RemoteTransition{
		pub:      pub,
		cfg:      cfg,
		fallback: navigator.FallbackTransition(),
		waiting:  make(map[uint64]chan struct{}),
	}
}

// Start subscribes to the acknowledgement topic.
func (t *RemoteTransition) Start(sub Subscriber) error {
	return sub.Subscribe(t.cfg.Topic(TopicTransitionAck), func(_ paho.Client, msg paho.Message) {
		t.ack(msg.Payload())
	})
}

func (t *RemoteTransition) FadeOut(ctx context.Context) error {
	return t.run(ctx, PhaseFadeOut)
}

func (t *RemoteTransition) FadeIn(ctx context.Context) error {
	return t.run(ctx, PhaseFadeIn)
}

func (t *RemoteTransition) run(ctx context.Context, phase string) error {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	done := make(chan struct{})
	t.waiting[seq] = done
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.waiting, seq)
		t.mu.Unlock()
	}()

	payload, err := json.Marshal(transitionMessage{Phase: phase, Seq: seq})
	if err != nil {
		return err
	}
	if err := t.pub.Publish(t.cfg.Topic(TopicTransitionRequest), payload); err != nil {
		if phase == PhaseFadeOut {
			return t.fallback.FadeOut(ctx)
		}
		return t.fallback.FadeIn(ctx)
	}

	timeout := t.cfg.AckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return &AckTimeoutError{Phase: phase}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *RemoteTransition) ack(payload []byte) {
	var m transitionMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if done, ok := t.waiting[m.Seq]; ok {
		close(done)
		delete(t.waiting, m.Seq)
	}
}
