// Package automation runs automation cycles: a pre webhook, a simulated
// email and a post webhook. It also drives the synchronous manual batch and
// the background batch started on registration.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"hubcredo/internal/email"
	"hubcredo/internal/store"
	"hubcredo/internal/webhook"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher sends webhook events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev webhook.Event, opts webhook.Options) webhook.Result
}

// Runner executes single cycles. It holds no per-cycle state and is safe
// for concurrent use by any number of loops.
type Runner struct {
	dispatcher Dispatcher
	mailer     email.Sender
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(dispatcher Dispatcher, mailer email.Sender, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger.With("component", "automation"),
		tracer:     otel.Tracer("hubcredo/automation"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle executes cycle number of total for user. Steps run strictly in
// order and the first failing step ends the cycle; nothing is retried.
func (r *Runner) RunCycle(ctx context.Context, user *store.User, number, total int) store.CycleOutcome {
	ctx, span := r.tracer.Start(ctx, "automation.cycle",
		trace.WithAttributes(
			attribute.String("user.id", user.ID.String()),
			attribute.Int("cycle.number", number),
			attribute.Int("cycle.total", total),
		),
	)
	defer span.End()

	outcome := store.CycleOutcome{
		CycleNumber: number,
		StartedAt:   r.now(),
	}

	err := r.runSteps(ctx, user, number, total, &outcome)

	outcome.CompletedAt = r.now()
	outcome.DurationMs = outcome.CompletedAt.Sub(outcome.StartedAt).Milliseconds()

	if err != nil {
		outcome.Status = store.CycleStatusFailed
		outcome.Error = err.Error()
		span.SetStatus(codes.Error, outcome.Error)
		r.logger.Warn("cycle failed", "user_id", user.ID, "cycle", number, "total", total, "error", err)
		return outcome
	}

	outcome.Status = store.CycleStatusCompleted
	r.logger.Info("cycle completed", "user_id", user.ID, "cycle", number, "total", total)
	return outcome
}

func (r *Runner) runSteps(ctx context.Context, user *store.User, number, total int, outcome *store.CycleOutcome) error {
	subject := webhookUser(user)

	pre := r.dispatcher.Dispatch(ctx,
		webhook.NewEvent(webhook.EventAutomationCycle, subject).
			WithCycle(number, total, webhook.StepPreEmail, webhook.ActionCycleStart),
		webhook.Options{},
	)
	outcome.Steps = append(outcome.Steps, webhookStep(webhook.StepPreEmail, pre))
	if !pre.Success {
		return fmt.Errorf("pre-email webhook failed: %s", pre.Error)
	}

	msg, err := r.mailer.SendCycleEmail(ctx, email.Recipient{Name: user.Name, Email: user.Email}, number, total)
	if err != nil {
		outcome.Steps = append(outcome.Steps, store.Step{
			Type:      store.StepTypeEmail,
			Step:      "send",
			Status:    store.StepStatusFailed,
			Timestamp: r.now(),
			Data:      encode(map[string]string{"error": err.Error()}),
		})
		return fmt.Errorf("email failed: %w", err)
	}
	outcome.Steps = append(outcome.Steps, store.Step{
		Type:      store.StepTypeEmail,
		Step:      "send",
		Status:    store.StepStatusSuccess,
		Timestamp: msg.Timestamp,
		Data:      encode(msg),
	})

	post := r.dispatcher.Dispatch(ctx,
		webhook.NewEvent(webhook.EventAutomationCycle, subject).
			WithCycle(number, total, webhook.StepPostEmail, webhook.ActionEmailSent).
			WithMetadata("email", map[string]string{"to": msg.To, "subject": msg.Subject}),
		webhook.Options{},
	)
	outcome.Steps = append(outcome.Steps, webhookStep(webhook.StepPostEmail, post))
	if !post.Success {
		return fmt.Errorf("post-email webhook failed: %s", post.Error)
	}

	return nil
}

func webhookStep(name string, res webhook.Result) store.Step {
	status := store.StepStatusSuccess
	if !res.Success {
		status = store.StepStatusFailed
	}
	return store.Step{
		Type:      store.StepTypeWebhook,
		Step:      name,
		Status:    status,
		Timestamp: res.Timestamp,
		Data:      encode(res),
	}
}

func webhookUser(user *store.User) webhook.User {
	return webhook.User{ID: user.ID.String(), Email: user.Email, Name: user.Name}
}

func encode(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
