// internal/testutil/fakesender.go
package testutil

import (
	"context"
	"sync"
)

// SentMail records one SendCode call.
type SentMail struct {
	To   string
	Name string
	Code string
}

// FakeSender is an in-memory mailer.Sender that captures sent codes.
type FakeSender struct {
	mu   sync.Mutex
	sent []SentMail

	// Err, when set, makes SendCode fail with that error.
	Err error
}

func (f *FakeSender) SendCode(ctx context.Context, to, name, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, SentMail{To: to, Name: name, Code: code})
	return nil
}

// Sent returns a copy of all captured mails.
func (f *FakeSender) Sent() []SentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMail, len(f.sent))
	copy(out, f.sent)
	return out
}

// LastCode returns the most recently sent code, or "".
func (f *FakeSender) LastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Code
}
