package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("part", 1)
	m.RecordRequest("full", 2)
	m.RecordRequest("full", 1)
	m.RecordTransportCall("remote", "ok", 20*time.Millisecond)
	m.RecordStale()
	m.RecordEdit()
	m.RecordEdit()
	m.RecordSync("fired")
	m.RecordCacheLookup("hit")
	m.RecordFetch("ok")
	m.SetCacheEntries(3)
	m.SetDocuments(2)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("full")); got != 2 {
		t.Errorf("requests{full} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TransportCallsTotal.WithLabelValues("remote", "ok")); got != 1 {
		t.Errorf("transport_calls{remote,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EditsTotal); got != 2 {
		t.Errorf("edits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheEntries); got != 3 {
		t.Errorf("cache entries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.DocumentsTracked); got != 2 {
		t.Errorf("documents = %v, want 2", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("none", 0)
	m.RecordTransportCall("local", "error", time.Second)
	m.RecordStale()
	m.RecordEdit()
	m.RecordSync("skipped")
	m.RecordCacheLookup("miss")
	m.RecordFetch("error")
	m.SetCacheEntries(1)
	m.SetDocuments(1)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("none", 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), "codehint_requests_total") {
		t.Errorf("metrics output missing codehint_requests_total:\n%s", body)
	}
}

// Two sessions must not collide on registration.
func TestNewMetrics_Independent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.RecordEdit()
	if got := testutil.ToFloat64(b.EditsTotal); got != 0 {
		t.Errorf("second registry edits = %v, want 0", got)
	}
}
