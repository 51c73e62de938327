package mongodb

import (
	"context"
	"fmt"
	"time"

	"clinic_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionAudit = "booking_audit"

	// Audit entries expire after 180 days
	auditRetention = 180 * 24 * time.Hour
)

// AuditAdapter implements out.AuditRepository using MongoDB. Entries carry a
// TTL so the trail prunes itself.
type AuditAdapter struct {
	collection *mongo.Collection
}

// NewAuditAdapter creates a new MongoDB audit adapter.
func NewAuditAdapter(db *mongo.Database) *AuditAdapter {
	return &AuditAdapter{
		collection: db.Collection(collectionAudit),
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *AuditAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "appointment_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
		{
			Keys: bson.D{{Key: "at", Value: -1}},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type auditDocument struct {
	Type          string         `bson:"type"`
	UserID        string         `bson:"user_id,omitempty"`
	AppointmentID string         `bson:"appointment_id,omitempty"`
	CalendarID    string         `bson:"calendar_id,omitempty"`
	Detail        map[string]any `bson:"detail,omitempty"`
	At            time.Time      `bson:"at"`
	ExpiresAt     time.Time      `bson:"expires_at"`
}

// Record stores one audit entry.
func (a *AuditAdapter) Record(ctx context.Context, ev *out.AuditEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	doc := auditDocument{
		Type:          ev.Type,
		UserID:        ev.UserID,
		AppointmentID: ev.AppointmentID,
		CalendarID:    ev.CalendarID,
		Detail:        ev.Detail,
		At:            at,
		ExpiresAt:     at.Add(auditRetention),
	}

	if _, err := a.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit entries.
func (a *AuditAdapter) ListRecent(ctx context.Context, limit int) ([]*out.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}

	events := make([]*out.AuditEvent, 0, len(docs))
	for i := range docs {
		events = append(events, &out.AuditEvent{
			Type:          docs[i].Type,
			UserID:        docs[i].UserID,
			AppointmentID: docs[i].AppointmentID,
			CalendarID:    docs[i].CalendarID,
			Detail:        docs[i].Detail,
			At:            docs[i].At,
		})
	}
	return events, nil
}
