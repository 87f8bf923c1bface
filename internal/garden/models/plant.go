// Package models defines the plant domain types shared by the garden
// stores and the sync engine.
package models

import "time"

// HealthStatus is one of the ordered health bands a plant can occupy,
// from most overwatered to most dry.
type HealthStatus string

const (
	StatusSeverelyOverwatered HealthStatus = "SEVERELY_OVERWATERED"
	StatusOverwatered         HealthStatus = "OVERWATERED"
	StatusHealthy             HealthStatus = "HEALTHY"
	StatusSlightlyDry         HealthStatus = "SLIGHTLY_DRY"
	StatusNeedsWater          HealthStatus = "NEEDS_WATER"
	StatusSeverelyDry         HealthStatus = "SEVERELY_DRY"

	// StatusUnknown is returned only when no usable watering history exists,
	// never as the result of normal decay.
	StatusUnknown HealthStatus = "UNKNOWN"
)

// statusDescriptions maps each band to the human-readable text shown to users.
var statusDescriptions = map[HealthStatus]string{
	StatusSeverelyOverwatered: "Watered far too often. Let the soil dry out completely before the next watering.",
	StatusOverwatered:         "Watered a little too often. Hold off on watering for now.",
	StatusHealthy:             "Doing great. Keep up the current watering rhythm.",
	StatusSlightlyDry:         "Getting a bit dry. A watering soon would not hurt.",
	StatusNeedsWater:          "Needs water. Time to grab the watering can.",
	StatusSeverelyDry:         "Severely dry. Water immediately to help it recover.",
	StatusUnknown:             "No watering history yet.",
}

// Description returns the user-facing text for the band.
func (s HealthStatus) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return statusDescriptions[StatusUnknown]
}

// InHealthyBand reports whether the band counts toward a continuous-care
// streak. HEALTHY and SLIGHTLY_DRY both qualify.
func (s HealthStatus) InHealthyBand() bool {
	return s == StatusHealthy || s == StatusSlightlyDry
}

// NeedsAttention reports whether the band warrants a watering notification.
func (s HealthStatus) NeedsAttention() bool {
	return s == StatusNeedsWater || s == StatusSeverelyDry
}

// Plant is the immutable descriptive part of a tracked plant. The health
// fields are a cache of the last materialization; the engine treats them as
// stale and recomputes on every access.
type Plant struct {
	Name                    string        `json:"name"`
	Species                 string        `json:"species"`
	Description             string        `json:"description"`
	PhotoURL                string        `json:"photoUrl,omitempty"`
	PendingPhotoPath        string        `json:"-"`
	WateringFrequency       time.Duration `json:"wateringFrequency"`
	HealthStatus            HealthStatus  `json:"healthStatus"`
	HealthStatusDescription string        `json:"healthStatusDescription"`
}

// OwnedPlant is the unit the engine manages: one plant in one owner's garden,
// together with its raw watering history.
type OwnedPlant struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Plant   Plant  `json:"plant"`

	LastWatered         time.Time  `json:"lastWatered"`
	PreviousLastWatered *time.Time `json:"previousLastWatered,omitempty"`

	// DateOfCreation is set once at creation and never mutated afterwards.
	DateOfCreation time.Time `json:"dateOfCreation"`

	// HealthySince is set the moment the plant enters the healthy band and
	// cleared the moment it leaves. It is untouched while the plant stays on
	// the same side of the boundary.
	HealthySince *time.Time `json:"healthySince,omitempty"`
}

// Equal reports whether two records are value-identical in every visible
// field. Pointer timestamps compare by value, not identity.
func (p OwnedPlant) Equal(o OwnedPlant) bool {
	return p.ID == o.ID &&
		p.OwnerID == o.OwnerID &&
		p.Plant == o.Plant &&
		p.LastWatered.Equal(o.LastWatered) &&
		equalTimePtr(p.PreviousLastWatered, o.PreviousLastWatered) &&
		p.DateOfCreation.Equal(o.DateOfCreation) &&
		equalTimePtr(p.HealthySince, o.HealthySince)
}

// EqualPlants reports whether two plant lists are element-wise equal.
func EqualPlants(a, b []OwnedPlant) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
