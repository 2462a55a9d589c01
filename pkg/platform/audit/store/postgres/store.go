package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"giveroute/pkg/domain"
	audit "giveroute/pkg/platform/audit"
	txcontext "giveroute/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction and
// published to Kafka by the outbox relay.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Payload is the JSON document stored in the outbox and published to Kafka.
type Payload struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	Action       string `json:"action"`
	Destination  string `json:"destination,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
	Name         string `json:"name,omitempty"`
	PreviousName string `json:"previous_name,omitempty"`
	Active       *bool  `json:"active,omitempty"`
	DonationID   uint64 `json:"donation_id,omitempty"`
	Amount       uint64 `json:"amount,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// Entry is one outbox row awaiting publication.
type Entry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

func toPayload(eventID uuid.UUID, event audit.Event) Payload {
	p := Payload{
		ID:           eventID.String(),
		Category:     string(audit.AuditEvent(event.Action).Category()),
		Timestamp:    event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:       event.Action,
		Name:         event.Name,
		PreviousName: event.PreviousName,
		Active:       event.Active,
		DonationID:   event.DonationID,
		Amount:       event.Amount,
		RequestID:    event.RequestID,
	}
	if !event.Destination.IsZero() {
		p.Destination = event.Destination.String()
	}
	if !event.ActorID.IsZero() {
		p.ActorID = event.ActorID.String()
	}
	return p
}

// ToEvent decodes a payload back into an audit event.
func (p Payload) ToEvent() (audit.Event, error) {
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse timestamp: %w", err)
	}
	destination, err := domain.ParseOptionalAddress(p.Destination)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse destination: %w", err)
	}
	actor, err := domain.ParseOptionalAddress(p.ActorID)
	if err != nil {
		return audit.Event{}, fmt.Errorf("parse actor: %w", err)
	}
	return audit.Event{
		Category:     audit.EventCategory(p.Category),
		Timestamp:    ts,
		Action:       p.Action,
		Destination:  destination,
		ActorID:      actor,
		Name:         p.Name,
		PreviousName: p.PreviousName,
		Active:       p.Active,
		DonationID:   p.DonationID,
		Amount:       p.Amount,
		RequestID:    p.RequestID,
	}, nil
}

// Append writes an audit event to the outbox table. When ctx carries a
// transaction the row commits or rolls back with it.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payloadBytes, err := json.Marshal(toPayload(eventID, event))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateID := eventID.String()
	if !event.Destination.IsZero() {
		aggregateID = event.Destination.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		eventID,
		"charity",
		aggregateID,
		event.Action,
		payloadBytes,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByDestination returns events recorded for a destination, oldest first.
func (s *Store) ListByDestination(ctx context.Context, destination domain.Address) ([]audit.Event, error) {
	query := `
		SELECT payload FROM outbox
		WHERE aggregate_id = $1
		ORDER BY created_at, seq
	`
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, destination.String())
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the last limit events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT payload FROM (
			SELECT payload, seq FROM outbox ORDER BY seq DESC LIMIT $1
		) recent
		ORDER BY seq
	`
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// FetchUnpublished returns up to limit rows that have not been relayed yet,
// in insertion order.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given rows as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode audit payload: %w", err)
		}
		event, err := p.ToEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
