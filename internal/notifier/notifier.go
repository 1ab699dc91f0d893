// Package notifier
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/rsicalc/internal/utils"
)

// Notifier interface for sending notifications (e.g., Telegram, log).
type Notifier interface {
	Send(msg string) error
	SendWithRetry(msg string) error
}

// LogNotifier writes notifications to the application log. It is used when
// no Telegram credentials are configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Send(msg string) error {
	utils.GetLogger().Printf("Notifier | %s", msg)
	return nil
}

func (n LogNotifier) SendWithRetry(msg string) error {
	return n.Send(msg)
}

// retry runs fn up to attempts times, sleeping delay between tries.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
