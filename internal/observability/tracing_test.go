package observability

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracer_LazyEndpoint(t *testing.T) {
	// gRPC dials lazily, so an unreachable collector must not fail init.
	shutdown, err := InitTracer(context.Background(), "hubcredo-test", "localhost:4317")
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}

func TestInitTracer_NoExporterStillPropagates(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "hubcredo-test", "")
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, span := otel.Tracer("hubcredo/test").Start(context.Background(), "probe")
	defer span.End()

	header := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))

	if header.Get("traceparent") == "" {
		t.Error("expected traceparent header to be injected")
	}
}
