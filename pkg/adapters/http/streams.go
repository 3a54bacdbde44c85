package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// AllTopics receives every event regardless of test case.
const AllTopics = "*"

// Event is one message on the /events stream.
type Event struct {
	Type     string                      `json:"type"`
	Topic    string                      `json:"topic,omitempty"`
	Step     *domain.StepEvent           `json:"step,omitempty"`
	Variable *domain.VariableChangeEvent `json:"variable,omitempty"`
}

// Event types.
const (
	EventStepStart    = "step_start"
	EventStepComplete = "step_complete"
	EventVariable     = "variable"
)

type topicKey struct{}

// withTopic tags ctx so hook events of the run are published under topic.
func withTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, topicKey{}, topic)
}

func topicFrom(ctx context.Context) string {
	topic, _ := ctx.Value(topicKey{}).(string)
	return topic
}

// StreamManager fans run events out to SSE subscribers, keyed by test case id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Event]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Event]struct{}),
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

// Subscribe registers a buffered channel for topic. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(topic string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 32)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- Event]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[topic]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, topic)
				}
			}
		})
	}
}

// Subscribers returns how many channels listen on topic.
func (sm *StreamManager) Subscribers(topic string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[topic])
}

// Broadcast delivers ev to the subscribers of ev.Topic and of AllTopics.
// Slow subscribers lose events instead of blocking the run.
func (sm *StreamManager) Broadcast(ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	topics := []string{AllTopics}
	if ev.Topic != "" && ev.Topic != AllTopics {
		topics = append(topics, ev.Topic)
	}
	for _, topic := range topics {
		for ch := range sm.subscribers[topic] {
			select {
			case ch <- ev:
			default:
				sm.logger.Warn("sse client buffer full, dropping event", "topic", topic, "type", ev.Type)
			}
		}
	}
}

// Hooks publishes executor events. Runs started by the server carry their
// test case id as topic; other runs publish to AllTopics only.
func (sm *StreamManager) Hooks() domain.ExecutionHooks {
	return domain.ExecutionHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			sm.Broadcast(Event{Type: EventStepStart, Topic: topicFrom(ctx), Step: e})
		},
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) {
			sm.Broadcast(Event{Type: EventStepComplete, Topic: topicFrom(ctx), Step: e})
		},
		OnVariable: func(ctx context.Context, e *domain.VariableChangeEvent) {
			sm.Broadcast(Event{Type: EventVariable, Topic: topicFrom(ctx), Variable: e})
		},
	}
}

// SubscribeEvents handles GET /events (SSE). The test_case query parameter
// narrows the stream to one test case; watch takes a comma-separated list of
// event types to keep.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("test_case")
	if topic == "" {
		topic = AllTopics
	}
	watch := make(map[string]bool)
	for _, t := range strings.Split(r.URL.Query().Get("watch"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			watch[t] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()
	s.logger.Info("sse subscriber connected", "topic", topic)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse subscriber disconnected", "topic", topic)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[ev.Type] {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("sse encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
