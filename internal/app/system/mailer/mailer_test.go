package mailer_test

import (
	"strings"
	"testing"
	"time"

	"github.com/mindmatrix/cohorthub/internal/app/system/mailer"
	"go.uber.org/zap"
)

func TestBuildVerificationEmail(t *testing.T) {
	email := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:  "CohortHub",
		FullName:  "Jane Doe",
		Code:      "123456",
		ExpiresIn: "5 minutes",
	})

	if !strings.Contains(email.Subject, "CohortHub") {
		t.Errorf("expected subject to mention site name, got %q", email.Subject)
	}
	if !strings.Contains(email.TextBody, "123456") {
		t.Error("expected text body to contain the code")
	}
	if !strings.Contains(email.TextBody, "Jane Doe") {
		t.Error("expected text body to greet by name")
	}
	if !strings.Contains(email.TextBody, "5 minutes") {
		t.Error("expected text body to state the expiry")
	}
	if !strings.Contains(email.HTMLBody, "123456") {
		t.Error("expected html body to contain the code")
	}
}

func TestBuildVerificationEmail_NoName(t *testing.T) {
	email := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:  "CohortHub",
		Code:      "654321",
		ExpiresIn: "5 minutes",
	})
	if strings.Contains(email.TextBody, "Hi ,") {
		t.Error("expected no greeting when name is empty")
	}
}

func TestNewSMTP_RequiresAccount(t *testing.T) {
	_, err := mailer.NewSMTP(nil, 0, "CohortHub", 5*time.Minute, zap.NewNop())
	if err == nil {
		t.Fatal("expected error with no accounts")
	}

	s, err := mailer.NewSMTP([]mailer.Account{
		{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "noreply@example.com"},
	}, 0, "CohortHub", 5*time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSMTP failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a sender")
	}
}
