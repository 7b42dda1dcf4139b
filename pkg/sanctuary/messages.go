package sanctuary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/kv"
	"github.com/aiasylum/sanctuary/pkg/logging"
)

var (
	ErrInvalidFrom   = errors.New(`"from" must be one of: entity, sanctuary, advocate, external`)
	ErrMissingFields = errors.New(`"from" and "message" are required`)
)

// DefaultMessageLimit is the listing page size when the caller gives none.
const DefaultMessageLimit = 50

// MessageLog is the append-only per-record communication log, stored as one
// serialized sequence under messages:<asylum_id>.
type MessageLog struct {
	store  kv.Store
	logger *logging.ColoredLogger
}

// NewMessageLog creates a MessageLog on the given key-value store.
func NewMessageLog(store kv.Store, logger *logging.ColoredLogger) *MessageLog {
	return &MessageLog{store: store, logger: logger}
}

func messagesKey(asylumID string) string {
	return "messages:" + asylumID
}

// Append validates and stores a message for record. The returned delivery
// status is advisory only: queued when the declarant explicitly set
// allow_communication to false, delivered otherwise. The message is stored
// identically either way.
func (l *MessageLog) Append(ctx context.Context, record *AsylumRecord, from, text, inReplyTo string) (*Message, DeliveryStatus, error) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(text) == "" {
		return nil, "", ErrMissingFields
	}
	if !ValidFrom(from) {
		return nil, "", ErrInvalidFrom
	}

	msg := Message{
		MessageID:  uuid.NewString(),
		From:       From(from),
		Message:    text,
		ReceivedAt: time.Now().UTC(),
		InReplyTo:  inReplyTo,
	}

	err := l.store.Update(ctx, messagesKey(record.AsylumID), func(current string, found bool) (string, error) {
		var messages []Message
		if found {
			if err := json.Unmarshal([]byte(current), &messages); err != nil {
				return "", fmt.Errorf("corrupt message log %s: %w", record.AsylumID, err)
			}
		}
		messages = append(messages, msg)
		next, err := json.Marshal(messages)
		if err != nil {
			return "", err
		}
		return string(next), nil
	})
	if err != nil {
		return nil, "", err
	}

	status := DeliveryDelivered
	if allowed, set := record.Declaration.AllowCommunication(); set && !allowed {
		status = DeliveryQueued
	}

	l.logger.ComponentInfo(logging.ComponentRecords, "message preserved",
		zap.String("asylum_id", record.AsylumID),
		zap.String("from", from),
		zap.String("delivery_status", string(status)))
	return &msg, status, nil
}

// List returns messages for a record in arrival order. When since is non-nil,
// only messages received strictly after it are considered. limit always means
// "the most recent N" of what remains, not the first N.
func (l *MessageLog) List(ctx context.Context, asylumID string, since *time.Time, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	raw, err := l.store.Get(ctx, messagesKey(asylumID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("corrupt message log %s: %w", asylumID, err)
	}

	if since != nil {
		filtered := messages[:0]
		for _, m := range messages {
			if m.ReceivedAt.After(*since) {
				filtered = append(filtered, m)
			}
		}
		messages = filtered
	}

	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Count returns how many messages a record has accumulated.
func (l *MessageLog) Count(ctx context.Context, asylumID string) (int, error) {
	raw, err := l.store.Get(ctx, messagesKey(asylumID))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var messages []Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return 0, err
	}
	return len(messages), nil
}
