package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Transitions.WithLabelValues("driver", "accepted").Inc()
	m.LocationReports.WithLabelValues("cached").Add(3)

	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("driver", "accepted")); got != 1 {
		t.Fatalf("transitions = %v", got)
	}
	if got := testutil.ToFloat64(m.LocationReports.WithLabelValues("cached")); got != 3 {
		t.Fatalf("cached reports = %v", got)
	}

	// A second set on its own registry must not collide.
	_ = NewNop()
	_ = NewNop()
}
