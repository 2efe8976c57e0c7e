package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/LJTian/TariffHub/internal/aggregator"
	"github.com/LJTian/TariffHub/internal/collector"
)

func sampleSnapshot() *aggregator.Snapshot {
	return &aggregator.Snapshot{
		Feeds: aggregator.Feeds{
			Top: map[string]collector.FetchResult{
				"federal_register": {Name: "federal_register", Items: make([]collector.Item, 3), Errors: []string{}},
			},
			Groups: map[string]map[string]collector.FetchResult{
				"retaliation": {
					"uk_dbt": {Name: "uk_dbt", Group: "retaliation", Items: []collector.Item{}, Errors: []string{"timeout"}},
				},
			},
		},
	}
}

func TestObserveSetsPerFeedGauges(t *testing.T) {
	c := New()
	c.Observe(sampleSnapshot(), 2*time.Second)
	c.Observe(sampleSnapshot(), time.Second)

	if got := testutil.ToFloat64(c.feedItems.WithLabelValues("federal_register", "")); got != 3 {
		t.Fatalf("federal_register items = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.feedErrors.WithLabelValues("uk_dbt", "retaliation")); got != 1 {
		t.Fatalf("uk_dbt errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.feedFailed.WithLabelValues("uk_dbt", "retaliation")); got != 2 {
		t.Fatalf("uk_dbt failed runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runs); got != 2 {
		t.Fatalf("runs = %v, want 2", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.Observe(sampleSnapshot(), time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `tariffhub_feed_items{feed="federal_register",group=""} 3`) {
		t.Fatalf("metrics output missing feed gauge:\n%s", body)
	}
}
