// Package events publishes domain events to KurrentDB. The publisher is
// optional: when the store is unreachable at boot the server runs without
// streaming and PublishAsync becomes a no-op.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"

	"github.com/hospital-urgencias/clinops/internal/shared/config"
)

// Event types emitted by the platform.
const (
	TypeRunCompleted    = "clinops.run.completed"
	TypeRunFailed       = "clinops.run.failed"
	TypeAuditRecorded   = "clinops.audit.recorded"
	TypeKnowledgeSealed = "clinops.knowledge.sealed"
	TypeChatMessage     = "clinops.chat.message"
)

// Event represents a domain event
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	Data      any       `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "clinops",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the acting username on the event
func (e Event) WithActor(username string) Event {
	e.ActorID = username
	return e
}

// Publisher is the event publishing surface modules depend on.
type Publisher interface {
	PublishAsync(event Event)
	Close()
}

// Bus publishes events to KurrentDB
type Bus struct {
	client *esdb.Client
	logger *slog.Logger
	prefix string
}

// NewBus connects to KurrentDB. The caller decides whether a failure here
// is fatal; cmd/clinops logs and continues without streaming.
func NewBus(cfg config.EventsConfig, logger *slog.Logger) (*Bus, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("events: parse connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("events: create client: %w", err)
	}

	return &Bus{client: client, logger: logger, prefix: "clinops"}, nil
}

func connectionString(cfg config.EventsConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}
	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false"
	}
	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Publish appends one event to its type stream
func (b *Bus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	stream := fmt.Sprintf("%s-%s", b.prefix, streamSuffix(event.Type))

	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}

	_, err = b.client.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdb.EventData{
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		EventID:     eventID,
	})
	if err != nil {
		return fmt.Errorf("events: append to stream %s: %w", stream, err)
	}
	return nil
}

// PublishAsync publishes without blocking the request path. Publish failures
// are logged and never surface to the caller.
func (b *Bus) PublishAsync(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.Publish(ctx, event); err != nil {
			b.logger.Warn("event publish failed", "type", event.Type, "error", err)
		}
	}()
}

// Close closes the underlying client
func (b *Bus) Close() {
	if b.client != nil {
		b.client.Close()
	}
}

// streamSuffix converts an event type to a stream-safe name
func streamSuffix(eventType string) string {
	result := make([]byte, len(eventType))
	for i := 0; i < len(eventType); i++ {
		if eventType[i] == '.' {
			result[i] = '-'
		} else {
			result[i] = eventType[i]
		}
	}
	return string(result)
}

// NopPublisher satisfies Publisher when streaming is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishAsync(Event) {}
func (NopPublisher) Close()             {}
