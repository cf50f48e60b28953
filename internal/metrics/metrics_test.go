package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/muurk/airtouch/internal/session"
)

func TestSessionMetricsRecord(t *testing.T) {
	reg := NewRegistry()
	m := NewSessionMetrics(reg)

	m.FrameReceived("ok")
	m.FrameReceived("ok")
	m.FrameReceived("checksum")
	m.MessageDecoded("ac_status")
	m.Reconnected()
	m.StateChanged(session.StateStreaming)
	m.Units("group", 4)
	m.AbilityRequest("mismatch")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"frames ok", testutil.ToFloat64(m.Frames.WithLabelValues("ok")), 2},
		{"frames checksum", testutil.ToFloat64(m.Frames.WithLabelValues("checksum")), 1},
		{"messages", testutil.ToFloat64(m.Messages.WithLabelValues("ac_status")), 1},
		{"reconnects", testutil.ToFloat64(m.Reconnects), 1},
		{"state", testutil.ToFloat64(m.State), float64(session.StateStreaming)},
		{"units", testutil.ToFloat64(m.UnitCount.WithLabelValues("group")), 4},
		{"ability", testutil.ToFloat64(m.AbilityRequests.WithLabelValues("mismatch")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewSessionMetrics(reg)
	m.Reconnected()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"airtouch_reconnects_total 1", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output lacks %q", want)
		}
	}
}
