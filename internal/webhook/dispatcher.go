// Package webhook delivers event notifications to the external workflow
// engine. Delivery failures are reported in the Result and logged; they are
// never returned as errors and never panic out of the package.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerSource    = "X-Hubcredo-Source"
	headerTimestamp = "X-Hubcredo-Timestamp"
	headerCycle     = "X-Hubcredo-Cycle"
	headerTotal     = "X-Hubcredo-Total"
	headerSignature = "X-Hubcredo-Signature"

	defaultTimeout = 5 * time.Second
	defaultSource  = "hubcredo-backend"

	// maxResponseBytes caps how much of the engine's reply is kept in a Result.
	maxResponseBytes = 64 << 10
)

// Outcome labels for the dispatch counter.
const (
	outcomeSimulated  = "simulated"
	outcomeDelivered  = "delivered"
	outcomeUnknown    = "unknown"
	outcomeFailed     = "failed"
	outcomeBackground = "background"
)

// Config configures a Dispatcher.
type Config struct {
	// URL of the workflow engine. Empty means every dispatch is simulated.
	URL string
	// Timeout is the default per-request timeout.
	Timeout time.Duration
	// Secret, when set, signs each body with HMAC-SHA256.
	Secret string
	// Strict turns timeouts and transport errors into hard failures.
	Strict bool
	// Source is sent in the payload and the X-Hubcredo-Source header.
	Source string
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Options tune a single Dispatch call.
type Options struct {
	FireAndForget bool
	Timeout       time.Duration
}

// Result describes the outcome of a dispatch.
//
// Success is false only for hard failures: the request could not be built,
// the engine answered with a 5xx status, or (in strict mode) the request
// never got an answer. Delivered is true only when a response was received.
type Result struct {
	Success    bool            `json:"success"`
	Simulated  bool            `json:"simulated,omitempty"`
	Delivered  bool            `json:"delivered"`
	StatusCode int             `json:"status,omitempty"`
	Note       string          `json:"note,omitempty"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Dispatcher posts events to the configured endpoint.
type Dispatcher struct {
	cfg        Config
	client     *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	dispatches metric.Int64Counter
	now        func() time.Time
	wg         sync.WaitGroup
}

// New creates a Dispatcher. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Source == "" {
		cfg.Source = defaultSource
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	client := cfg.Client
	if client == nil {
		// Per-request timeouts come from the context.
		client = &http.Client{}
	}

	meter := otel.Meter("hubcredo/webhook")
	dispatches, err := meter.Int64Counter("hubcredo.webhook.dispatches",
		metric.WithDescription("Webhook dispatches by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create webhook dispatch counter", "error", err)
	}

	return &Dispatcher{
		cfg:        cfg,
		client:     client,
		logger:     logger.With("component", "webhook"),
		tracer:     otel.Tracer("hubcredo/webhook"),
		dispatches: dispatches,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether an endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return d.cfg.URL != ""
}

// Dispatch sends ev to the workflow engine.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("webhook dispatch panicked", "event", ev.Event, "panic", r)
			res = d.failure(fmt.Sprintf("dispatch panicked: %v", r))
		}
	}()

	if ev.Timestamp == "" {
		ev.Timestamp = formatTimestamp(d.now())
	}
	if ev.Source == "" {
		ev.Source = d.cfg.Source
	}

	if !d.Enabled() {
		d.count(ctx, outcomeSimulated)
		d.logger.Debug("webhook simulated", "event", ev.Event)
		return Result{Success: true, Simulated: true, Note: "no webhook url configured", Timestamp: d.now()}
	}

	body, err := json.Marshal(ev)
	if err != nil {
		d.count(ctx, outcomeFailed)
		return d.failure(fmt.Sprintf("encode payload: %v", err))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.cfg.Timeout
	}

	if opts.FireAndForget {
		// Keep trace values but detach from the caller's cancellation.
		bg := context.WithoutCancel(ctx)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("background webhook panicked", "event", ev.Event, "panic", r)
				}
			}()

			r := d.deliver(bg, ev, body, timeout)
			if !r.Success || !r.Delivered {
				d.logger.Warn("background webhook not delivered",
					"event", ev.Event, "error", r.Error, "note", r.Note)
			}
		}()

		d.count(ctx, outcomeBackground)
		return Result{Success: true, Note: "dispatched in background", Timestamp: d.now()}
	}

	return d.deliver(ctx, ev, body, timeout)
}

// Wait blocks until all fire-and-forget deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event, body []byte, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "webhook.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("webhook.event", ev.Event),
			attribute.String("user.id", ev.User.ID),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		d.count(ctx, outcomeFailed)
		return d.failure(fmt.Sprintf("build request: %v", err))
	}

	d.setHeaders(req, ev, body)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := d.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return d.transportFailure(ctx, ev, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
		d.count(ctx, outcomeFailed)
		d.logger.Warn("webhook rejected", "event", ev.Event, "status", resp.StatusCode)
		res := d.failure(fmt.Sprintf("webhook returned status %d", resp.StatusCode))
		res.StatusCode = resp.StatusCode
		return res
	}

	d.count(ctx, outcomeDelivered)
	d.logger.Debug("webhook delivered", "event", ev.Event, "status", resp.StatusCode)
	return Result{
		Success:    true,
		Delivered:  true,
		StatusCode: resp.StatusCode,
		Data:       responseData(raw),
		Timestamp:  d.now(),
	}
}

// transportFailure handles requests that never got a response.
func (d *Dispatcher) transportFailure(ctx context.Context, ev Event, err error) Result {
	reason := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timed out"
	}

	if d.cfg.Strict {
		d.count(ctx, outcomeFailed)
		d.logger.Warn("webhook delivery failed", "event", ev.Event, "error", err)
		return d.failure("delivery failed: " + reason)
	}

	d.count(ctx, outcomeUnknown)
	d.logger.Info("webhook delivery unknown", "event", ev.Event, "error", err)
	return Result{Success: true, Note: "delivery unknown: " + reason, Timestamp: d.now()}
}

func (d *Dispatcher) setHeaders(req *http.Request, ev Event, body []byte) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSource, d.cfg.Source)
	req.Header.Set(headerTimestamp, strconv.FormatInt(d.now().UnixMilli(), 10))
	if ev.Cycle != nil {
		req.Header.Set(headerCycle, strconv.Itoa(ev.Cycle.Number))
		req.Header.Set(headerTotal, strconv.Itoa(ev.Cycle.Total))
	}
	if d.cfg.Secret != "" {
		req.Header.Set(headerSignature, Sign(d.cfg.Secret, body))
	}
}

func (d *Dispatcher) failure(msg string) Result {
	return Result{Success: false, Error: msg, Timestamp: d.now()}
}

func (d *Dispatcher) count(ctx context.Context, outcome string) {
	if d.dispatches == nil {
		return
	}
	d.dispatches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in the
// X-Hubcredo-Signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// responseData keeps JSON replies as-is and wraps anything else as a string.
func responseData(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return quoted
}
