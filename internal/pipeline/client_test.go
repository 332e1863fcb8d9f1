package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/catalogops/syncboard/internal/syncstate"
)

func TestFetchStatusDecodesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sync/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("expected bearer token to be forwarded, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"generatedAt": "2025-06-01T12:00:00Z",
			"sources": {
				"nas": {"status":"idle","lastSync":"2025-06-01T11:30:00Z","itemCount":412},
				"sheets": {"status":"running","itemCount":90}
			},
			"scheduler": {"enabled":true,"interval":"1h"}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "token", server.Client())
	snap, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("fetch status failed: %v", err)
	}
	nas, ok := snap.Sources[syncstate.SourceNAS]
	if !ok {
		t.Fatalf("nas missing from snapshot")
	}
	if nas.Status != syncstate.StatusIdle || nas.ItemCount != 412 || nas.LastSync == nil {
		t.Fatalf("nas decoded wrong: %+v", nas)
	}
	if snap.Sources[syncstate.SourceSheets].Status != syncstate.StatusRunning {
		t.Fatalf("sheets decoded wrong: %+v", snap.Sources[syncstate.SourceSheets])
	}
	if !snap.Scheduler.Enabled || snap.Scheduler.Interval != "1h" {
		t.Fatalf("scheduler decoded wrong: %+v", snap.Scheduler)
	}
	if snap.GeneratedAt.IsZero() {
		t.Fatalf("generatedAt not decoded")
	}
}

func TestFetchStatusStampsMissingGenerationTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sources":{}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", server.Client())
	snap, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("fetch status failed: %v", err)
	}
	if snap.GeneratedAt.IsZero() {
		t.Fatalf("expected local stamp when upstream omits generatedAt")
	}
}

func TestFetchStatusRetriesTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code":"unavailable","message":"retry"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"generatedAt":"2025-06-01T12:00:00Z","sources":{}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "token", server.Client())
	if _, err := client.FetchStatus(context.Background()); err != nil {
		t.Fatalf("expected retry to recover from transient 503, got error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly 2 calls (1 retry), got %d", atomic.LoadInt32(&calls))
	}
}

func TestTriggerSyncReturnsJobID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sync/nas/trigger" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobId":"job_7f3","status":"queued"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "token", server.Client())
	result, err := client.TriggerSync(context.Background(), syncstate.SourceNAS)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if result.JobID != "job_7f3" {
		t.Fatalf("expected job id job_7f3, got %q", result.JobID)
	}
}

func TestTriggerSyncSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"already_running","message":"nas sync already in progress"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "token", server.Client())
	_, err := client.TriggerSync(context.Background(), syncstate.SourceNAS)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusConflict || httpErr.Code != "already_running" {
		t.Fatalf("error decoded wrong: %+v", httpErr)
	}
}
