// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/mindmatrix/cohorthub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Verify controls logging for self-service verification events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Verify string
	// Admin controls logging for admin operations (force-verify, unverify,
	// imports, broadcasts).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for recording audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.MemberID != "" {
		fields = append(fields, zap.String("member_id", event.MemberID))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.Actor != "" {
		fields = append(fields, zap.String("actor", event.Actor))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryVerify:
		setting = l.config.Verify
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Verification Events ---

// CodeSent logs that a verification code was issued and mailed.
func (l *Logger) CodeSent(ctx context.Context, memberID, email string, resendCount int) {
	eventType := audit.EventCodeSent
	if resendCount > 0 {
		eventType = audit.EventCodeResent
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryVerify,
		EventType: eventType,
		MemberID:  memberID,
		Email:     email,
		Actor:     "member",
		Success:   true,
		Details: map[string]string{
			"resend_count": strconv.Itoa(resendCount),
		},
	})
}

// CodeFailed logs a failed code submission.
func (l *Logger) CodeFailed(ctx context.Context, memberID string, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryVerify,
		EventType:     audit.EventCodeFailed,
		MemberID:      memberID,
		Actor:         "member",
		Success:       false,
		FailureReason: reason,
	})
}

// Verified logs a completed verification with the identity it bound.
func (l *Logger) Verified(ctx context.Context, memberID, email, org, program, cohort string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryVerify,
		EventType: audit.EventVerified,
		MemberID:  memberID,
		Email:     email,
		Actor:     "member",
		Success:   true,
		Details: map[string]string{
			"organization": org,
			"program":      program,
			"cohort":       cohort,
		},
	})
}

// Provisioned logs that a cohort's resources were ensured on the platform.
func (l *Logger) Provisioned(ctx context.Context, memberID string, created map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryVerify,
		EventType: audit.EventProvisioned,
		MemberID:  memberID,
		Actor:     "member",
		Success:   true,
		Details:   created,
	})
}

// PermissionDenied logs a platform permission failure, which needs operator
// attention rather than a retry.
func (l *Logger) PermissionDenied(ctx context.Context, memberID, detail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryVerify,
		EventType:     audit.EventPermissionDenied,
		MemberID:      memberID,
		Actor:         "member",
		Success:       false,
		FailureReason: detail,
	})
}

// --- Admin Events ---

// ForceVerified logs an admin bypassing the OTP flow for a member.
func (l *Logger) ForceVerified(ctx context.Context, actor, memberID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventForceVerified,
		MemberID:  memberID,
		Email:     email,
		Actor:     actor,
		Success:   true,
	})
}

// Unverified logs an admin releasing a member's verified binding.
func (l *Logger) Unverified(ctx context.Context, actor, memberID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUnverified,
		MemberID:  memberID,
		Email:     email,
		Actor:     actor,
		Success:   true,
	})
}

// StudentAdded logs a single student registration by an admin.
func (l *Logger) StudentAdded(ctx context.Context, actor, email, org string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventStudentAdded,
		Email:     email,
		Actor:     actor,
		Success:   true,
		Details: map[string]string{
			"organization": org,
		},
	})
}

// StudentsImported logs a bulk CSV import.
func (l *Logger) StudentsImported(ctx context.Context, actor string, added, skipped, conflicts int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventStudentsImported,
		Actor:     actor,
		Success:   true,
		Details: map[string]string{
			"added":     strconv.Itoa(added),
			"skipped":   strconv.Itoa(skipped),
			"conflicts": strconv.Itoa(conflicts),
		},
	})
}

// BroadcastSent logs an admin broadcast to a program channel.
func (l *Logger) BroadcastSent(ctx context.Context, actor, org, program, channel string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventBroadcastSent,
		Actor:     actor,
		Success:   true,
		Details: map[string]string{
			"organization": org,
			"program":      program,
			"channel":      channel,
		},
	})
}
