// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Email is a single outbound message with both plain-text and HTML bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a verification code to a recipient. Implementations must
// be safe for concurrent use.
type Sender interface {
	SendCode(ctx context.Context, to, name, code string) error
}

// Account is one SMTP identity the sender can deliver through.
type Account struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (a Account) addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// SMTPSender sends verification codes over SMTP. When several accounts are
// configured it rotates to the next one after SwitchThreshold sends from the
// current account, which spreads volume across provider quotas. A send
// failure also advances to the next account before the error is returned.
type SMTPSender struct {
	accounts  []Account
	threshold int
	siteName  string
	expiresIn time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	current int
	sent    int // sends through the current account
}

// DefaultSwitchThreshold is how many sends an account handles before
// rotation moves to the next one.
const DefaultSwitchThreshold = 100

// NewSMTP creates an SMTPSender. At least one account is required.
func NewSMTP(accounts []Account, threshold int, siteName string, expiresIn time.Duration, log *zap.Logger) (*SMTPSender, error) {
	if len(accounts) == 0 {
		return nil, errors.New("mailer: at least one smtp account is required")
	}
	if threshold <= 0 {
		threshold = DefaultSwitchThreshold
	}
	return &SMTPSender{
		accounts:  accounts,
		threshold: threshold,
		siteName:  siteName,
		expiresIn: expiresIn,
		log:       log,
	}, nil
}

// SendCode builds the verification email and delivers it through the
// current account.
func (s *SMTPSender) SendCode(ctx context.Context, to, name, code string) error {
	email := BuildVerificationEmail(VerificationEmailData{
		SiteName:  s.siteName,
		FullName:  name,
		Code:      code,
		ExpiresIn: formatExpiry(s.expiresIn),
	})
	email.To = to
	return s.Send(ctx, email)
}

// Send delivers an arbitrary email through the current account, rotating
// when the per-account threshold is reached.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	account := s.pick()

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(account.From, email)
	auth := smtp.PlainAuth("", account.Username, account.Password, account.Host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(account.addr(), auth, account.From, []string{email.To}, msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil {
		s.log.Warn("smtp send failed",
			zap.String("host", account.Host),
			zap.String("from", account.From),
			zap.Error(err),
		)
		s.rotate("send failure")
		return fmt.Errorf("send mail via %s: %w", account.Host, err)
	}
	return nil
}

// pick returns the account to use for this send and charges it.
func (s *SMTPSender) pick() Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent >= s.threshold && len(s.accounts) > 1 {
		s.advanceLocked("threshold reached")
	}
	s.sent++
	return s.accounts[s.current]
}

func (s *SMTPSender) rotate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.accounts) > 1 {
		s.advanceLocked(reason)
	}
}

func (s *SMTPSender) advanceLocked(reason string) {
	s.current = (s.current + 1) % len(s.accounts)
	s.sent = 0
	s.log.Info("rotated smtp account",
		zap.Int("account_index", s.current),
		zap.String("reason", reason),
	)
}

func buildMessage(from string, email Email) []byte {
	// multipart/alternative so clients fall back to the text body
	boundary := "cohorthub-alt-boundary"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(email.TextBody)
	b.WriteString("\r\n")

	if email.HTMLBody != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(email.HTMLBody)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

func formatExpiry(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	m := int(d.Minutes())
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
