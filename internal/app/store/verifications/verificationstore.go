// internal/app/store/verifications/verificationstore.go
package verificationstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of the verification code (6 digits).
	CodeLength = 6
	// DefaultExpiry is how long a verification code is valid.
	DefaultExpiry = 5 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is the maximum number of code checks per issued code.
	MaxVerifyAttempts = 5
	// MaxResends is the maximum number of code reissues within ResendWindow.
	MaxResends = 3
	// ResendWindow is the time window for tracking reissue rate limiting.
	ResendWindow = 10 * time.Minute
)

var (
	// ErrNotFound is returned when no verification record exists for a member.
	ErrNotFound = errors.New("verification record not found")
	// ErrNoPending is returned when a member has no outstanding code.
	ErrNoPending = errors.New("no pending verification code")
	// ErrCodeExpired is returned when the outstanding code has expired.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrCodeMismatch is returned when the submitted code does not match.
	ErrCodeMismatch = errors.New("verification code does not match")
	// ErrTooManyAttempts is returned after MaxVerifyAttempts failed checks;
	// the outstanding code is no longer usable.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrRateLimited is returned when the reissue cap for the window is hit.
	ErrRateLimited = errors.New("too many code requests, try again later")
	// ErrAlreadyVerified is returned when the member is already verified.
	ErrAlreadyVerified = errors.New("member is already verified")
)

// Store manages verification records. Records are never hard-deleted:
// unverify resets a record back to pending and keeps the row.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store with the given code expiry. If expiry is 0 or
// negative, DefaultExpiry (5 minutes) is used.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("verifications"), expiry: expiry}
}

// Expiry returns the configured code lifetime.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// EnsureIndexes creates the unique member index and the partial unique
// email index that holds only while a record is verified. The partial
// filter is what lets an unverified email be claimed by a different member
// after an unverify.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "member_id", Value: 1}},
			Options: options.Index().SetName("idx_verifications_member_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("idx_verifications_email_verified_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.StatusVerified}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_verifications_status"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// GetByMemberID loads a member's verification record.
func (s *Store) GetByMemberID(ctx context.Context, memberID string) (models.Verification, error) {
	var v models.Verification
	err := s.c.FindOne(ctx, bson.M{"member_id": normalize.MemberID(memberID)}).Decode(&v)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Verification{}, ErrNotFound
		}
		return models.Verification{}, err
	}
	return v, nil
}

// FindVerifiedByEmail returns the verified record bound to an email, if any.
func (s *Store) FindVerifiedByEmail(ctx context.Context, email string) (models.Verification, error) {
	var v models.Verification
	err := s.c.FindOne(ctx, bson.M{
		"email":  normalize.Email(email),
		"status": models.StatusVerified,
	}).Decode(&v)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Verification{}, ErrNotFound
		}
		return models.Verification{}, err
	}
	return v, nil
}

// IssueCode generates a fresh 6-digit code for the member, stores its
// bcrypt hash, and moves the record to code_sent. Any previous code is
// invalidated and the attempt counter resets. Reissues are capped at
// MaxResends per ResendWindow; exceeding the cap returns ErrRateLimited.
// The plain code is returned exactly once, for the mail sender.
func (s *Store) IssueCode(ctx context.Context, memberID, email string, id models.Identity) (string, error) {
	memberID = normalize.MemberID(memberID)
	email = normalize.Email(email)
	now := time.Now().UTC()

	existing, err := s.GetByMemberID(ctx, memberID)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if found && existing.Status == models.StatusVerified {
		return "", ErrAlreadyVerified
	}

	resendCount := 0
	windowStart := now
	if found && now.Before(existing.WindowStart.Add(ResendWindow)) {
		windowStart = existing.WindowStart
		resendCount = existing.ResendCount
		if existing.Status == models.StatusCodeSent {
			resendCount++
		}
		if resendCount < 0 { // a rolled-back first issuance
			resendCount = 0
		}
		if resendCount > MaxResends {
			return "", ErrRateLimited
		}
	}

	code := generateCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	set := bson.M{
		"email":           email,
		"organization":    id.Organization,
		"program":         id.Program,
		"cohort":          id.Cohort,
		"status":          models.StatusCodeSent,
		"code_hash":       string(hash),
		"code_issued_at":  now,
		"code_expires_at": now.Add(s.expiry),
		"attempts":        0,
		"resend_count":    resendCount,
		"window_start":    windowStart,
		"updated_at":      now,
	}
	_, err = s.c.UpdateOne(ctx,
		bson.M{"member_id": memberID},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"member_id":  memberID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("issue code: %w", err)
	}
	return code, nil
}

// RevokeCode rolls an issuance back, returning the record to pending
// without charging the reissue counter. Used when sending the code fails.
func (s *Store) RevokeCode(ctx context.Context, memberID string) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"member_id": normalize.MemberID(memberID), "status": models.StatusCodeSent},
		bson.M{
			"$set": bson.M{
				"status":     models.StatusPending,
				"code_hash":  "",
				"updated_at": now,
			},
			"$inc": bson.M{"resend_count": -1},
		},
	)
	return err
}

// CheckCode validates a submitted code against the member's outstanding
// one without consuming it. Failure modes, in order: ErrNoPending (no
// record or no outstanding code), ErrCodeExpired, ErrTooManyAttempts,
// ErrCodeMismatch (charges an attempt). A passing check leaves the record
// in code_sent; callers commit with MarkVerified once their follow-up work
// succeeds, so a failure there keeps the same code valid.
func (s *Store) CheckCode(ctx context.Context, memberID, code string) (models.Verification, error) {
	v, err := s.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Verification{}, ErrNoPending
		}
		return models.Verification{}, err
	}
	if v.Status == models.StatusVerified {
		return models.Verification{}, ErrAlreadyVerified
	}
	if v.Status != models.StatusCodeSent || v.CodeHash == "" {
		return models.Verification{}, ErrNoPending
	}
	if time.Now().After(v.CodeExpiresAt) {
		return models.Verification{}, ErrCodeExpired
	}
	if v.Attempts >= MaxVerifyAttempts {
		return models.Verification{}, ErrTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(normalize.Code(code))); err != nil {
		_, _ = s.c.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
		return models.Verification{}, ErrCodeMismatch
	}
	return v, nil
}

// MarkVerified commits the transition to verified, consuming the code.
func (s *Store) MarkVerified(ctx context.Context, memberID string) (models.Verification, error) {
	now := time.Now().UTC()
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"member_id": normalize.MemberID(memberID), "status": models.StatusCodeSent},
		bson.M{"$set": bson.M{
			"status":      models.StatusVerified,
			"code_hash":   "",
			"verified_at": now,
			"updated_at":  now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var v models.Verification
	if err := res.Decode(&v); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Verification{}, ErrNoPending
		}
		// The partial unique email index fires when another member won
		// the race to verify this email after our pre-check.
		if wafflemongo.IsDup(err) {
			return models.Verification{}, ErrAlreadyVerified
		}
		return models.Verification{}, err
	}
	return v, nil
}

// ForceVerified binds the member to the email as verified without a code,
// creating the record if needed. The partial unique email index still
// rejects a second member claiming the same verified email.
func (s *Store) ForceVerified(ctx context.Context, memberID, email string, id models.Identity) (models.Verification, error) {
	memberID = normalize.MemberID(memberID)
	now := time.Now().UTC()
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"member_id": memberID},
		bson.M{
			"$set": bson.M{
				"email":        normalize.Email(email),
				"organization": id.Organization,
				"program":      id.Program,
				"cohort":       id.Cohort,
				"status":       models.StatusVerified,
				"code_hash":    "",
				"attempts":     0,
				"verified_at":  now,
				"updated_at":   now,
			},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var v models.Verification
	if err := res.Decode(&v); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Verification{}, ErrAlreadyVerified
		}
		return models.Verification{}, err
	}
	return v, nil
}

// Unverify releases the member's email binding and resets the record to
// pending. The row is kept for audit joins. Returns the record as it was
// before the reset so callers can revoke roles for its identity.
func (s *Store) Unverify(ctx context.Context, memberID string) (models.Verification, error) {
	now := time.Now().UTC()
	res := s.c.FindOneAndUpdate(ctx,
		bson.M{"member_id": normalize.MemberID(memberID)},
		bson.M{"$set": bson.M{
			"status":       models.StatusPending,
			"code_hash":    "",
			"attempts":     0,
			"resend_count": 0,
			"verified_at":  nil,
			"updated_at":   now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	)
	var v models.Verification
	if err := res.Decode(&v); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Verification{}, ErrNotFound
		}
		return models.Verification{}, err
	}
	return v, nil
}

// Stats reports record counts by status.
type Stats struct {
	Verified     int64 `json:"verified"`
	PendingCodes int64 `json:"pending_codes"`
	Pending      int64 `json:"pending"`
}

// CountByStatus tallies verification records per status.
func (s *Store) CountByStatus(ctx context.Context) (Stats, error) {
	var st Stats
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return st, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return st, err
		}
		switch row.Status {
		case models.StatusVerified:
			st.Verified = row.Count
		case models.StatusCodeSent:
			st.PendingCodes = row.Count
		case models.StatusPending:
			st.Pending = row.Count
		}
	}
	return st, cur.Err()
}

// ListVerifiedByProgram returns verified records under an organization and
// program, used to locate a provisionable identity for broadcasts.
func (s *Store) ListVerifiedByProgram(ctx context.Context, org, program string, limit int64) ([]models.Verification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "verified_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := s.c.Find(ctx, bson.M{
		"organization": normalize.OrgCode(org),
		"program":      program,
		"status":       models.StatusVerified,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Verification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// generateCode generates a random 6-digit numeric code.
// Panics if the system's cryptographic random number generator fails.
func generateCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if n < 0 {
		n = -n
	}
	code := (n % 900000) + 100000
	return fmt.Sprintf("%06d", code)
}
