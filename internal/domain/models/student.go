// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity is the organizational identity tuple a verified email resolves
// to. Organization is always an uppercase code from the configured
// supported set; Program and Cohort keep their display casing.
type Identity struct {
	Organization string `bson:"organization" json:"organization"`
	Program      string `bson:"program" json:"program"`
	Cohort       string `bson:"cohort" json:"cohort"`
}

// Student represents one row of the student registry.
//
// Records are created by bulk import (or the admin add-student command)
// and are never mutated by the verification flow; they are the source of
// truth for resolving an email to an organizational identity.
type Student struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"` // lowercase, unique
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Organization string             `bson:"organization" json:"organization"`
	Program      string             `bson:"program" json:"program"`
	Cohort       string             `bson:"cohort" json:"cohort"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Identity returns the student's organizational identity tuple.
func (s Student) Identity() Identity {
	return Identity{
		Organization: s.Organization,
		Program:      s.Program,
		Cohort:       s.Cohort,
	}
}
