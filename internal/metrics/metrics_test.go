package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lox/soilcalc/internal/models"
	"github.com/lox/soilcalc/internal/units"
)

func TestUnitFallbackObserver(t *testing.T) {
	c := UnitFallbacksTotal.WithLabelValues("Ca")
	before := testutil.ToFloat64(c)

	var obs UnitFallbackObserver
	obs.UnknownUnit(models.Ca, "lb_acre")
	obs.UnknownUnit(models.Ca, "")

	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("fallbacks = %v, want 2", got)
	}

	unknown := UnitFallbacksTotal.WithLabelValues("unknown")
	before = testutil.ToFloat64(unknown)
	obs.UnknownUnit(models.Nutrient("Al"), "cmolc_dm3")
	if got := testutil.ToFloat64(unknown) - before; got != 1 {
		t.Errorf("unknown nutrient fallbacks = %v, want 1", got)
	}
}

func TestUnitFallbackSeriesStayBounded(t *testing.T) {
	reg := units.Default().WithObserver(UnitFallbackObserver{})

	// one series per registered nutrient plus "unknown", whatever the input
	for i := 0; i < 1000; i++ {
		reg.ToCanonical(1, models.Ca, fmt.Sprintf("junk-%d", i))
		reg.FromCanonical(1, models.Nutrient(fmt.Sprintf("X%d", i)), units.MgDm3)
	}

	limit := len(reg.Nutrients()) + 1
	if n := testutil.CollectAndCount(UnitFallbacksTotal); n > limit {
		t.Errorf("fallback series = %d, want at most %d", n, limit)
	}
}
