package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"p2p-exchange-client/internal/scheduler"
	"p2p-exchange-client/internal/throttle"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestCollectorsAppearInExposition(t *testing.T) {
	m := New()
	m.ObserveRequest("/p2p/index", 200, 30*time.Millisecond)
	m.ObserveRequest("/p2p/index", 200, 10*time.Millisecond)
	m.ObserveThrottle("alerts.check.1", throttle.ReasonInterval)
	m.ObserveJob("offer_alerts", scheduler.OutcomeRetry, time.Second)
	m.AlertChecked("ok")
	m.AlertMatched(3)
	m.NotificationSent("suppressed")
	m.SetCachedOffers(2, 5)

	body := scrape(t, m)
	for _, want := range []string{
		`p2pclient_api_requests_total{endpoint="/p2p/index",status="200"} 2`,
		`p2pclient_throttle_blocked_total{reason="interval"} 1`,
		`p2pclient_scheduler_job_runs_total{job="offer_alerts",outcome="retry"} 1`,
		`p2pclient_alerts_checks_total{result="ok"} 1`,
		`p2pclient_alerts_matches_total 3`,
		`p2pclient_alerts_notifications_total{result="suppressed"} 1`,
		`p2pclient_cache_offers{partition="marketplace"} 5`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in exposition:\n%s", want, body)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz response %d %q", resp.StatusCode, body)
	}
}
