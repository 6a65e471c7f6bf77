package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return NewEvent(EventAutomationCycle, User{ID: "u1", Email: "ada@example.com"}).
		WithCycle(2, 5, StepPreEmail, ActionCycleStart)
}

func TestDispatch_NoURLIsSimulated(t *testing.T) {
	d := New(Config{}, nil)

	res := d.Dispatch(context.Background(), testEvent(), Options{})

	assert.True(t, res.Success)
	assert.True(t, res.Simulated)
	assert.False(t, res.Delivered)
}

func TestDispatch_SendsPayloadAndHeaders(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer srv.Close()

	d := New(Config{URL: srv.URL, Secret: "s3cret", Source: "hubcredo-test"}, nil)

	res := d.Dispatch(context.Background(), testEvent(), Options{})

	require.True(t, res.Success)
	assert.True(t, res.Delivered)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"received":true}`, string(res.Data))

	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, "hubcredo-test", gotHeader.Get("X-Hubcredo-Source"))
	assert.NotEmpty(t, gotHeader.Get("X-Hubcredo-Timestamp"))
	assert.Equal(t, "2", gotHeader.Get("X-Hubcredo-Cycle"))
	assert.Equal(t, "5", gotHeader.Get("X-Hubcredo-Total"))
	assert.Equal(t, Sign("s3cret", gotBody), gotHeader.Get("X-Hubcredo-Signature"))

	var payload Event
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, EventAutomationCycle, payload.Event)
	assert.Equal(t, "hubcredo-test", payload.Source)
	assert.NotEmpty(t, payload.Timestamp)
	require.NotNil(t, payload.Cycle)
	assert.Equal(t, StepPreEmail, payload.Cycle.Step)
}

func TestDispatch_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantSuccess   bool
		wantDelivered bool
	}{
		{"2xx acknowledged", http.StatusAccepted, true, true},
		{"4xx still acknowledged", http.StatusNotFound, true, true},
		{"5xx hard failure", http.StatusBadGateway, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			res := New(Config{URL: srv.URL}, nil).Dispatch(context.Background(), testEvent(), Options{})

			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, tt.wantDelivered, res.Delivered)
			assert.Equal(t, tt.status, res.StatusCode)
			if !tt.wantSuccess {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestDispatch_TimeoutIsLenientByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := New(Config{URL: srv.URL}, nil)

	start := time.Now()
	res := d.Dispatch(context.Background(), testEvent(), Options{Timeout: 50 * time.Millisecond})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, res.Success)
	assert.False(t, res.Delivered)
	assert.Contains(t, res.Note, "delivery unknown")
}

func TestDispatch_TimeoutFailsInStrictMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := New(Config{URL: srv.URL, Strict: true}, nil)

	res := d.Dispatch(context.Background(), testEvent(), Options{Timeout: 50 * time.Millisecond})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
}

func TestDispatch_UnbuildableRequestIsHardFailure(t *testing.T) {
	d := New(Config{URL: "://not-a-url"}, nil)

	res := d.Dispatch(context.Background(), testEvent(), Options{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "build request")
}

func TestDispatch_FireAndForgetReturnsImmediately(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
	}))
	defer srv.Close()

	d := New(Config{URL: srv.URL}, nil)

	start := time.Now()
	res := d.Dispatch(context.Background(), testEvent(), Options{FireAndForget: true})
	elapsed := time.Since(start)

	assert.True(t, res.Success)
	assert.Less(t, elapsed, 200*time.Millisecond)

	close(release)
	d.Wait()
	assert.Equal(t, int32(1), hits.Load())
}

func TestDispatch_FireAndForgetSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := New(Config{URL: url, Strict: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	res := d.Dispatch(ctx, testEvent(), Options{FireAndForget: true, Timeout: 100 * time.Millisecond})
	cancel()

	assert.True(t, res.Success)
	assert.NotPanics(t, d.Wait)
}

func TestEvent_WithMetadataCopies(t *testing.T) {
	base := NewEvent(EventLoopCompleted, User{ID: "u1"}).WithMetadata("a", 1)
	derived := base.WithMetadata("b", 2)

	assert.Len(t, base.Metadata, 1)
	assert.Len(t, derived.Metadata, 2)
}
