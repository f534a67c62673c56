// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryVerify = "verify"
	CategoryAdmin  = "admin"
)

// Verification event types
const (
	EventCodeSent         = "verification_code_sent"
	EventCodeResent       = "verification_code_resent"
	EventCodeFailed       = "verification_code_failed"
	EventVerified         = "verified"
	EventProvisioned      = "resources_provisioned"
	EventPermissionDenied = "platform_permission_denied"
)

// Admin event types
const (
	EventForceVerified    = "force_verified"
	EventUnverified       = "unverified"
	EventStudentAdded     = "student_added"
	EventStudentsImported = "students_imported"
	EventBroadcastSent    = "broadcast_sent"
)

// Event is one append-only audit record of a verification or admin action.
type Event struct {
	ID        string    `bson:"_id"`
	Timestamp time.Time `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	MemberID string `bson:"member_id,omitempty"`
	Email    string `bson:"email,omitempty"`
	// Actor identifies who performed the action: "member" for self-service
	// verification, or an admin token label for admin operations.
	Actor string `bson:"actor,omitempty"`

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	MemberID  string
	Email     string
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages the verification audit trail.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("verification_audit")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "member_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "email", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event. IDs are uuids so events can be referenced
// outside mongo.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Email = normalize.Email(event.Email)
	event.MemberID = normalize.MemberID(event.MemberID)
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func (f QueryFilter) toQuery() bson.M {
	query := bson.M{}
	if f.MemberID != "" {
		query["member_id"] = normalize.MemberID(f.MemberID)
	}
	if f.Email != "" {
		query["email"] = normalize.Email(f.Email)
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, most recent first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.toQuery(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.toQuery())
}

// GetByMember retrieves recent audit events for a member.
func (s *Store) GetByMember(ctx context.Context, memberID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{MemberID: memberID, Limit: limit})
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

// GetFailedCodes retrieves recent failed code submissions, for abuse review.
func (s *Store) GetFailedCodes(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	start := since
	return s.Query(ctx, QueryFilter{
		Category:  CategoryVerify,
		EventType: EventCodeFailed,
		StartTime: &start,
		Limit:     limit,
	})
}
