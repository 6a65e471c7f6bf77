// Package email simulates outbound mail for automation cycles. No message
// leaves the process; Send waits a fixed delay and reports success.
package email

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultDelay mimics the latency of a real mail provider.
const DefaultDelay = 800 * time.Millisecond

// Recipient is who a message is addressed to.
type Recipient struct {
	Name  string
	Email string
}

// Message is the result of a simulated send.
type Message struct {
	Success     bool      `json:"success"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Cycle       int       `json:"cycle"`
	TotalCycles int       `json:"totalCycles"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sender sends the per-cycle automation email.
type Sender interface {
	SendCycleEmail(ctx context.Context, to Recipient, cycle, total int) (Message, error)
}

// Simulated is a Sender that only waits and logs.
type Simulated struct {
	delay  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewSimulated returns a Simulated sender. A negative delay means DefaultDelay.
func NewSimulated(delay time.Duration, logger *slog.Logger) *Simulated {
	if delay < 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Simulated{
		delay:  delay,
		logger: logger.With("component", "email"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SendCycleEmail waits for the configured delay and returns a deterministic
// message for the given cycle. It fails only if ctx ends first.
func (s *Simulated) SendCycleEmail(ctx context.Context, to Recipient, cycle, total int) (Message, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Message{}, fmt.Errorf("send email to %s: %w", to.Email, ctx.Err())
		case <-t.C:
		}
	}

	s.logger.Info("email sent", "to", to.Email, "cycle", cycle, "total", total)

	return Message{
		Success:     true,
		To:          to.Email,
		Subject:     fmt.Sprintf("Hubcredo Automation - Cycle %d", cycle),
		Body:        fmt.Sprintf("Hello %s, this is automation cycle %d of %d.", to.Name, cycle, total),
		Cycle:       cycle,
		TotalCycles: total,
		Timestamp:   s.now(),
	}, nil
}
