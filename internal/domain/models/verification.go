// internal/domain/models/verification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Verification status values. A record moves pending → code_sent →
// verified; unverify puts it back to pending without deleting the row, so
// the audit history survives.
const (
	StatusPending  = "pending"
	StatusCodeSent = "code_sent"
	StatusVerified = "verified"
)

// Verification tracks one member's verification lifecycle. There is at
// most one record per member id; email is unique among verified records.
type Verification struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MemberID string             `bson:"member_id" json:"member_id"`
	Email    string             `bson:"email,omitempty" json:"email,omitempty"` // lowercase

	Organization string `bson:"organization,omitempty" json:"organization,omitempty"`
	Program      string `bson:"program,omitempty" json:"program,omitempty"`
	Cohort       string `bson:"cohort,omitempty" json:"cohort,omitempty"`

	Status string `bson:"status" json:"status"`

	// One-time code state. Only the bcrypt hash is ever stored.
	CodeHash      string    `bson:"code_hash,omitempty" json:"-"`
	CodeIssuedAt  time.Time `bson:"code_issued_at,omitempty" json:"-"`
	CodeExpiresAt time.Time `bson:"code_expires_at,omitempty" json:"-"`
	Attempts      int       `bson:"attempts" json:"-"`
	ResendCount   int       `bson:"resend_count" json:"-"`
	WindowStart   time.Time `bson:"window_start,omitempty" json:"-"`

	VerifiedAt *time.Time `bson:"verified_at,omitempty" json:"verified_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IdentityTuple returns the organizational identity bound to this record.
func (v Verification) IdentityTuple() Identity {
	return Identity{
		Organization: v.Organization,
		Program:      v.Program,
		Cohort:       v.Cohort,
	}
}
