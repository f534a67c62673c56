// internal/app/system/verifier/verifier.go
package verifier

import (
	"context"
	"errors"
	"fmt"

	studentstore "github.com/mindmatrix/cohorthub/internal/app/store/students"
	verificationstore "github.com/mindmatrix/cohorthub/internal/app/store/verifications"
	"github.com/mindmatrix/cohorthub/internal/app/system/auditlog"
	"github.com/mindmatrix/cohorthub/internal/app/system/mailer"
	"github.com/mindmatrix/cohorthub/internal/app/system/normalize"
	"github.com/mindmatrix/cohorthub/internal/app/system/orgs"
	"github.com/mindmatrix/cohorthub/internal/app/system/platform"
	"github.com/mindmatrix/cohorthub/internal/app/system/provision"
	"github.com/mindmatrix/cohorthub/internal/app/system/ratelimit"
	"github.com/mindmatrix/cohorthub/internal/app/system/reskey"
	"github.com/mindmatrix/cohorthub/internal/domain/models"
	"go.uber.org/zap"
)

// Sentinels shared with the stores, re-exported so handlers depend on one
// package for the whole error taxonomy.
var (
	ErrNotFound        = studentstore.ErrNotFound
	ErrAlreadyVerified = verificationstore.ErrAlreadyVerified
	ErrNoPending       = verificationstore.ErrNoPending
	ErrCodeExpired     = verificationstore.ErrCodeExpired
	ErrCodeMismatch    = verificationstore.ErrCodeMismatch
	ErrTooManyAttempts = verificationstore.ErrTooManyAttempts
	ErrRateLimited     = verificationstore.ErrRateLimited

	ErrPermissionDenied    = platform.ErrPermissionDenied
	ErrExternalUnavailable = platform.ErrUnavailable

	// ErrUnsupportedOrg is returned when the resolved identity belongs to
	// an organization outside the configured supported set.
	ErrUnsupportedOrg = errors.New("organization is not supported by this deployment")
)

// Verifier drives the verification state machine: pending → code_sent →
// verified, re-enterable via unverify. Every transition for a member runs
// under that member's lock; external calls (mail, platform) are made while
// holding only that one lock.
type Verifier struct {
	students *studentstore.Store
	verifs   *verificationstore.Store
	prov     *provision.Provisioner
	client   platform.Client
	sender   mailer.Sender
	audit    *auditlog.Logger
	orgSet   *orgs.Set
	cooldown *ratelimit.IssueLimiter
	log      *zap.Logger
	locks    *memberLocks
}

// Deps collects the verifier's collaborators.
type Deps struct {
	Students *studentstore.Store
	Verifs   *verificationstore.Store
	Prov     *provision.Provisioner
	Client   platform.Client
	Sender   mailer.Sender
	Audit    *auditlog.Logger
	Orgs     *orgs.Set
	Cooldown *ratelimit.IssueLimiter
	Log      *zap.Logger
}

// New creates a Verifier.
func New(d Deps) *Verifier {
	return &Verifier{
		students: d.Students,
		verifs:   d.Verifs,
		prov:     d.Prov,
		client:   d.Client,
		sender:   d.Sender,
		audit:    d.Audit,
		orgSet:   d.Orgs,
		cooldown: d.Cooldown,
		log:      d.Log,
		locks:    newMemberLocks(),
	}
}

// resolve maps an email to its enrollment identity, rejecting unsupported
// organizations before anything external happens.
func (v *Verifier) resolve(ctx context.Context, email string) (models.Student, error) {
	st, err := v.students.ResolveIdentity(ctx, email)
	if err != nil {
		return models.Student{}, err
	}
	if !v.orgSet.Supported(st.Organization) {
		return models.Student{}, fmt.Errorf("%w: %s", ErrUnsupportedOrg, st.Organization)
	}
	return st, nil
}

// Verify starts (or restarts) verification for a member: resolves the
// email to an identity, issues a code, and mails it. The status moves to
// code_sent only if the mail went out; a mail failure rolls the issuance
// back and surfaces ErrExternalUnavailable.
func (v *Verifier) Verify(ctx context.Context, memberID, email string) error {
	memberID = normalize.MemberID(memberID)
	email = normalize.Email(email)
	unlock := v.locks.lock(memberID)
	defer unlock()

	// A member verified against a different email, or an email already
	// verified by a different member, must unverify first.
	if existing, err := v.verifs.GetByMemberID(ctx, memberID); err == nil &&
		existing.Status == models.StatusVerified {
		return ErrAlreadyVerified
	} else if err != nil && !errors.Is(err, verificationstore.ErrNotFound) {
		return err
	}
	if bound, err := v.verifs.FindVerifiedByEmail(ctx, email); err == nil && bound.MemberID != memberID {
		return ErrAlreadyVerified
	} else if err != nil && !errors.Is(err, verificationstore.ErrNotFound) {
		return err
	}

	st, err := v.resolve(ctx, email)
	if err != nil {
		return err
	}

	if ok, _ := v.cooldown.Check("", memberID); !ok {
		return ErrRateLimited
	}

	return v.issueAndSend(ctx, memberID, st.Email, st.FullName, st.Identity())
}

// Reverify reissues a code over a member's outstanding verification,
// invalidating the previous code. ErrNoPending when the member has no
// record to reissue against.
func (v *Verifier) Reverify(ctx context.Context, memberID string) error {
	memberID = normalize.MemberID(memberID)
	unlock := v.locks.lock(memberID)
	defer unlock()

	rec, err := v.verifs.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, verificationstore.ErrNotFound) {
			return ErrNoPending
		}
		return err
	}
	if rec.Status == models.StatusVerified {
		return ErrAlreadyVerified
	}
	if rec.Email == "" {
		return ErrNoPending
	}

	if ok, _ := v.cooldown.Check("", memberID); !ok {
		return ErrRateLimited
	}

	name := ""
	if st, err := v.students.GetByEmail(ctx, rec.Email); err == nil {
		name = st.FullName
	}
	return v.issueAndSend(ctx, memberID, rec.Email, name, rec.IdentityTuple())
}

func (v *Verifier) issueAndSend(ctx context.Context, memberID, email, name string, id models.Identity) error {
	code, err := v.verifs.IssueCode(ctx, memberID, email, id)
	if err != nil {
		if errors.Is(err, verificationstore.ErrRateLimited) {
			return ErrRateLimited
		}
		return err
	}

	if err := v.sender.SendCode(ctx, email, name, code); err != nil {
		// Roll back so the member is not charged for a code that never
		// arrived.
		if rerr := v.verifs.RevokeCode(ctx, memberID); rerr != nil {
			v.log.Error("failed to roll back undelivered code",
				zap.String("member_id", memberID), zap.Error(rerr))
		}
		v.cooldown.ResetMember(memberID)
		v.log.Warn("verification mail failed",
			zap.String("member_id", memberID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}

	rec, gerr := v.verifs.GetByMemberID(ctx, memberID)
	resend := 0
	if gerr == nil {
		resend = rec.ResendCount
	}
	v.audit.CodeSent(ctx, memberID, email, resend)
	return nil
}

// Result is the outcome of a completed verification.
type Result struct {
	Verification models.Verification
	Key          reskey.Key
	Handles      provision.Handles
}

// SubmitCode validates the member's code, provisions the identity's
// resources, grants the member its roles, and only then commits verified.
// Provisioning failure leaves the record in code_sent with the same code
// still valid for a later retry.
func (v *Verifier) SubmitCode(ctx context.Context, memberID, code string) (Result, error) {
	memberID = normalize.MemberID(memberID)
	unlock := v.locks.lock(memberID)
	defer unlock()

	rec, err := v.verifs.CheckCode(ctx, memberID, code)
	if err != nil {
		switch {
		case errors.Is(err, verificationstore.ErrCodeMismatch):
			v.audit.CodeFailed(ctx, memberID, "code mismatch")
		case errors.Is(err, verificationstore.ErrCodeExpired):
			v.audit.CodeFailed(ctx, memberID, "code expired")
		case errors.Is(err, verificationstore.ErrTooManyAttempts):
			v.audit.CodeFailed(ctx, memberID, "too many attempts")
		}
		return Result{}, err
	}

	key, handles, err := v.provisionAndGrant(ctx, memberID, rec.IdentityTuple())
	if err != nil {
		return Result{}, err
	}

	committed, err := v.verifs.MarkVerified(ctx, memberID)
	if err != nil {
		return Result{}, err
	}

	v.audit.Verified(ctx, memberID, committed.Email,
		committed.Organization, committed.Program, committed.Cohort)

	v.welcome(ctx, handles, rec.Email)
	return Result{Verification: committed, Key: key, Handles: handles}, nil
}

// ForceVerify binds memberID to email as verified without a code, running
// the same provisioning path as SubmitCode. Admin-only.
func (v *Verifier) ForceVerify(ctx context.Context, actor, memberID, email string) (Result, error) {
	memberID = normalize.MemberID(memberID)
	email = normalize.Email(email)
	unlock := v.locks.lock(memberID)
	defer unlock()

	if bound, err := v.verifs.FindVerifiedByEmail(ctx, email); err == nil && bound.MemberID != memberID {
		return Result{}, ErrAlreadyVerified
	} else if err != nil && !errors.Is(err, verificationstore.ErrNotFound) {
		return Result{}, err
	}

	st, err := v.resolve(ctx, email)
	if err != nil {
		return Result{}, err
	}

	key, handles, err := v.provisionAndGrant(ctx, memberID, st.Identity())
	if err != nil {
		return Result{}, err
	}

	rec, err := v.verifs.ForceVerified(ctx, memberID, email, st.Identity())
	if err != nil {
		return Result{}, err
	}

	v.audit.ForceVerified(ctx, actor, memberID, email)
	v.welcome(ctx, handles, st.Email)
	return Result{Verification: rec, Key: key, Handles: handles}, nil
}

func (v *Verifier) provisionAndGrant(ctx context.Context, memberID string, id models.Identity) (reskey.Key, provision.Handles, error) {
	key := reskey.Derive(id)
	handles, err := v.prov.EnsureAll(ctx, key)
	if err != nil {
		return key, handles, v.platformErr(ctx, memberID, "provision", err)
	}
	if err := v.prov.Grant(ctx, memberID, handles); err != nil {
		return key, handles, v.platformErr(ctx, memberID, "grant roles", err)
	}
	v.audit.Provisioned(ctx, memberID, map[string]string{
		"category":    key.Category,
		"course_role": key.CourseRole,
		"cohort_role": key.CohortRole,
	})
	return key, handles, nil
}

func (v *Verifier) platformErr(ctx context.Context, memberID, op string, err error) error {
	if errors.Is(err, platform.ErrPermissionDenied) {
		v.audit.PermissionDenied(ctx, memberID, op+": "+err.Error())
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	v.log.Warn("platform call failed",
		zap.String("member_id", memberID), zap.String("op", op), zap.Error(err))
	if errors.Is(err, platform.ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrExternalUnavailable, err)
}

// welcome posts a greeting in the cohort channel. Failures only log; the
// verification already committed.
func (v *Verifier) welcome(ctx context.Context, handles provision.Handles, email string) {
	name := email
	if st, err := v.students.GetByEmail(ctx, email); err == nil && st.FullName != "" {
		name = st.FullName
	}
	msg := fmt.Sprintf("Welcome %s, you are verified!", name)
	if err := v.client.PostMessage(ctx, handles.CohortChannel.ID, msg); err != nil {
		v.log.Warn("welcome message failed", zap.Error(err))
	}
}

// Unverify releases a member's verified binding: revokes their roles on
// the platform and resets the record to pending. Shared resources are
// never deleted.
func (v *Verifier) Unverify(ctx context.Context, actor, memberID string) error {
	memberID = normalize.MemberID(memberID)
	unlock := v.locks.lock(memberID)
	defer unlock()

	before, err := v.verifs.Unverify(ctx, memberID)
	if err != nil {
		if errors.Is(err, verificationstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if before.Status == models.StatusVerified {
		key := reskey.Derive(before.IdentityTuple())
		handles, perr := v.prov.EnsureAll(ctx, key)
		if perr == nil {
			perr = v.prov.Revoke(ctx, memberID, handles)
		}
		if perr != nil {
			// The binding is already released; role revocation is
			// best-effort and logged for operator follow-up.
			v.log.Warn("role revocation failed",
				zap.String("member_id", memberID), zap.Error(perr))
		}
	}

	v.audit.Unverified(ctx, actor, memberID, before.Email)
	return nil
}

// UnverifyByEmail unverifies whichever member holds the verified binding
// for email.
func (v *Verifier) UnverifyByEmail(ctx context.Context, actor, email string) error {
	rec, err := v.verifs.FindVerifiedByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, verificationstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return v.Unverify(ctx, actor, rec.MemberID)
}

// LookupResult joins a member's student record with their verification
// state. Either half may be absent.
type LookupResult struct {
	Student      *models.Student      `json:"student,omitempty"`
	Verification *models.Verification `json:"verification,omitempty"`
}

// Lookup finds a member's state by member id or email, whichever is given.
func (v *Verifier) Lookup(ctx context.Context, memberID, email string) (LookupResult, error) {
	var out LookupResult

	if memberID != "" {
		rec, err := v.verifs.GetByMemberID(ctx, memberID)
		if err == nil {
			out.Verification = &rec
			if email == "" {
				email = rec.Email
			}
		} else if !errors.Is(err, verificationstore.ErrNotFound) {
			return out, err
		}
	}
	if email != "" {
		st, err := v.students.GetByEmail(ctx, email)
		if err == nil {
			out.Student = &st
		} else if !errors.Is(err, studentstore.ErrNotFound) {
			return out, err
		}
		if out.Verification == nil {
			if rec, err := v.verifs.FindVerifiedByEmail(ctx, email); err == nil {
				out.Verification = &rec
			} else if !errors.Is(err, verificationstore.ErrNotFound) {
				return out, err
			}
		}
	}

	if out.Student == nil && out.Verification == nil {
		return out, ErrNotFound
	}
	return out, nil
}

// Broadcast posts a message exactly once to the announcements channel of a
// program. The channel is located (or provisioned) from any verified
// member's identity under that program; with no verified members there is
// nothing to address, so ErrNotFound.
func (v *Verifier) Broadcast(ctx context.Context, actor, org, program, message string) (string, error) {
	if !v.orgSet.Supported(org) {
		return "", ErrUnsupportedOrg
	}
	recs, err := v.verifs.ListVerifiedByProgram(ctx, org, program, 1)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", ErrNotFound
	}

	key := reskey.Derive(recs[0].IdentityTuple())
	handles, err := v.prov.EnsureAll(ctx, key)
	if err != nil {
		return "", v.platformErr(ctx, "", "broadcast provision", err)
	}
	if err := v.client.PostMessage(ctx, handles.Announcements.ID, message); err != nil {
		return "", v.platformErr(ctx, "", "broadcast post", err)
	}

	v.audit.BroadcastSent(ctx, actor, normalize.OrgCode(org), program, key.AnnouncementsChannel)
	return key.AnnouncementsChannel, nil
}

// Stats are the admin dashboard totals.
type Stats struct {
	Students     int64            `json:"students"`
	Verified     int64            `json:"verified"`
	PendingCodes int64            `json:"pending_codes"`
	Unverified   int64            `json:"unverified"`
	Rate         float64          `json:"verification_rate"`
	ByOrg        map[string]int64 `json:"students_by_organization,omitempty"`
}

// Stats tallies registry and verification totals.
func (v *Verifier) Stats(ctx context.Context) (Stats, error) {
	var out Stats

	total, err := v.students.Count(ctx, "")
	if err != nil {
		return out, err
	}
	out.Students = total

	byStatus, err := v.verifs.CountByStatus(ctx)
	if err != nil {
		return out, err
	}
	out.Verified = byStatus.Verified
	out.PendingCodes = byStatus.PendingCodes
	out.Unverified = total - byStatus.Verified
	if out.Unverified < 0 {
		out.Unverified = 0
	}
	if total > 0 {
		out.Rate = float64(byStatus.Verified) / float64(total)
	}

	byOrg, err := v.students.CountByOrganization(ctx)
	if err != nil {
		return out, err
	}
	out.ByOrg = byOrg
	return out, nil
}
