// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateStudent inserts a student registry row and returns it.
func (f *Fixtures) CreateStudent(ctx context.Context, email, name, org, program, cohort string) models.Student {
	f.t.Helper()

	s := models.Student{
		ID:           primitive.NewObjectID(),
		Email:        email,
		FullName:     name,
		FullNameCI:   text.Fold(name),
		Organization: org,
		Program:      program,
		Cohort:       cohort,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := f.db.Collection("students").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test student: %v", err)
	}
	return s
}
