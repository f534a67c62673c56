// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no student record exists for an email.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicateEmail is returned when a student with this email already exists.
	ErrDuplicateEmail = errors.New("a student with this email already exists")
)

// Store manages the registry of enrolled students.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("students")}
}

// EnsureIndexes creates the unique email index and lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_students_email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "organization", Value: 1}, {Key: "program", Value: 1}, {Key: "cohort", Value: 1}},
			Options: options.Index().SetName("idx_students_identity"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// ResolveIdentity looks up the enrollment identity for an email address.
// The email is normalized before lookup, so callers may pass raw input.
func (s *Store) ResolveIdentity(ctx context.Context, email string) (models.Student, error) {
	return s.GetByEmail(ctx, email)
}

// GetByEmail loads a student record by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.Student, error) {
	var st models.Student
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&st)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Student{}, ErrNotFound
		}
		return models.Student{}, err
	}
	return st, nil
}

// Add inserts a single student record. Returns ErrDuplicateEmail when the
// email is already registered.
func (s *Store) Add(ctx context.Context, st models.Student) (models.Student, error) {
	st.ID = primitive.NewObjectID()
	st.Email = normalize.Email(st.Email)
	st.FullName = normalize.Name(st.FullName)
	st.FullNameCI = text.Fold(st.FullName)
	st.Organization = normalize.OrgCode(st.Organization)
	st.Program = normalize.Program(st.Program)
	st.Cohort = normalize.Cohort(st.Cohort)
	st.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Student{}, ErrDuplicateEmail
		}
		return models.Student{}, err
	}
	return st, nil
}

// Conflict records a row whose email already exists with a different
// enrollment identity. The existing record is kept untouched.
type Conflict struct {
	Email    string          `json:"email"`
	Existing models.Identity `json:"existing"`
	Incoming models.Identity `json:"incoming"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Added     int        `json:"added"`
	Skipped   int        `json:"skipped"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// BulkImport inserts the given students one at a time. Rows whose email is
// already registered with the same identity are skipped; rows whose email is
// registered under a different identity are skipped and reported as
// conflicts. Existing records are never modified.
func (s *Store) BulkImport(ctx context.Context, students []models.Student) (ImportResult, error) {
	var res ImportResult
	for _, st := range students {
		_, err := s.Add(ctx, st)
		if err == nil {
			res.Added++
			continue
		}
		if !errors.Is(err, ErrDuplicateEmail) {
			return res, err
		}
		existing, gerr := s.GetByEmail(ctx, st.Email)
		if gerr != nil {
			return res, gerr
		}
		incoming := models.Identity{
			Organization: normalize.OrgCode(st.Organization),
			Program:      normalize.Program(st.Program),
			Cohort:       normalize.Cohort(st.Cohort),
		}
		if existing.Identity() != incoming {
			res.Conflicts = append(res.Conflicts, Conflict{
				Email:    normalize.Email(st.Email),
				Existing: existing.Identity(),
				Incoming: incoming,
			})
		}
		res.Skipped++
	}
	return res, nil
}

// List returns students, optionally filtered by organization code, ordered
// by email. A limit of 0 means no limit.
func (s *Store) List(ctx context.Context, org string, limit, offset int64) ([]models.Student, error) {
	filter := bson.M{}
	if org != "" {
		filter["organization"] = normalize.OrgCode(org)
	}
	opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}}).SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Student
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of registered students, optionally filtered by
// organization code.
func (s *Store) Count(ctx context.Context, org string) (int64, error) {
	filter := bson.M{}
	if org != "" {
		filter["organization"] = normalize.OrgCode(org)
	}
	return s.c.CountDocuments(ctx, filter)
}

// CountByOrganization returns the number of students per organization code.
func (s *Store) CountByOrganization(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$organization", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Org   string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Org] = row.Count
	}
	return out, cur.Err()
}
