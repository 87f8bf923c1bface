// Package health implements the plant health model: a pure function from a
// plant's watering history to a health band. No state, no I/O, safe for
// concurrent use.
package health

import (
	"time"

	"github.com/verdora/gardensync/internal/garden/models"
)

// Band thresholds, expressed as a percentage of the configured watering
// frequency. Dryness is how far the plant is into its watering cycle;
// the interval percentage is how early it was re-watered relative to the
// cycle. The ladder must stay monotonic: each constant is an upper bound
// for its band.
const (
	severelyOverwateredMaxPct = 30.0
	overwateredMaxPct         = 70.0
	healthyMaxPct             = 70.0
	slightlyDryMaxPct         = 100.0
	needsWaterMaxPct          = 130.0

	// Overwatering fades linearly with dryness and is gone once dryness
	// reaches this percentage of the cycle.
	overwaterRecoveryEndPct = 30.0

	// Effective severity above this split classifies as severely overwatered.
	overwaterSeverityLevelSplit = 0.5
)

// Classify maps a watering history to a health band at the given instant.
//
// Dryness alone walks the plant down the ladder HEALTHY → SLIGHTLY_DRY →
// NEEDS_WATER → SEVERELY_DRY as now advances. A previous watering that came
// much sooner than the configured frequency overrides the dryness reading:
// re-watering too early is unhealthy even when the plant looks freshly
// watered. That overwatering severity decays linearly as the plant dries
// out, so the bands are crossed continuously, never skipped.
//
// UNKNOWN is returned only for missing history (zero lastWatered or a
// non-positive frequency), never as a result of normal decay.
func Classify(lastWatered time.Time, frequency time.Duration, previousLastWatered *time.Time, now time.Time) models.HealthStatus {
	if frequency <= 0 || lastWatered.IsZero() {
		return models.StatusUnknown
	}

	drynessPct := pctOfCycle(now.Sub(lastWatered), frequency)

	startingSeverity := 0.0
	if previousLastWatered != nil && !previousLastWatered.IsZero() {
		intervalPct := pctOfCycle(lastWatered.Sub(*previousLastWatered), frequency)
		switch {
		case intervalPct < severelyOverwateredMaxPct:
			startingSeverity = 1.0
		case intervalPct < overwateredMaxPct:
			startingSeverity = 1.0 - relativePct(severelyOverwateredMaxPct, overwateredMaxPct, intervalPct)
		}
	}

	// Severity decays to zero by the recovery-end threshold.
	decay := clamp01(1.0 - drynessPct/overwaterRecoveryEndPct)
	effectiveSeverity := startingSeverity * decay

	if effectiveSeverity > 0 {
		if effectiveSeverity > overwaterSeverityLevelSplit {
			return models.StatusSeverelyOverwatered
		}
		return models.StatusOverwatered
	}

	switch {
	case drynessPct <= healthyMaxPct:
		return models.StatusHealthy
	case drynessPct <= slightlyDryMaxPct:
		return models.StatusSlightlyDry
	case drynessPct <= needsWaterMaxPct:
		return models.StatusNeedsWater
	default:
		return models.StatusSeverelyDry
	}
}

// pctOfCycle expresses an elapsed duration as a percentage of the watering
// frequency. The ratio is continuous, not integer.
func pctOfCycle(elapsed, frequency time.Duration) float64 {
	return float64(elapsed) / float64(frequency) * 100.0
}

// relativePct normalizes z within [x,y] to [0,1], clamping outside the range.
func relativePct(x, y, z float64) float64 {
	if y == x {
		return 0.0
	}
	if z < x {
		z = x
	}
	if z > y {
		z = y
	}
	return (z - x) / (y - x)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
