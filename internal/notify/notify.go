// Package notify delivers operator alerts (new WhatsApp contacts, failed
// forwards) over e-mail and Telegram.
package notify

import (
	"context"
	"errors"
	"log"
	"time"
)

type Notifier interface {
	Alert(ctx context.Context, subject, body string) error
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Alert(ctx context.Context, subject, body string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Alert(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop only logs.
type Noop struct{}

func (Noop) Alert(_ context.Context, subject, _ string) error {
	log.Printf("[notify][noop] %s", subject)
	return nil
}

// Async delivers alerts in the background so request paths never wait on
// SMTP or Telegram. Errors are logged.
type Async struct {
	Next    Notifier
	Timeout time.Duration
}

func (a Async) Alert(ctx context.Context, subject, body string) error {
	if a.Next == nil {
		return nil
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := a.Next.Alert(ctx, subject, body); err != nil {
			log.Printf("[notify][async] %q: %v", subject, err)
		}
	}()
	return nil
}
