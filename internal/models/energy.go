package models

import "math"

// Fatigue model: every 200 steps or 2.5 heart points cost one energy point,
// fatigue saturates at 90 so energy never drops below the floor.
const (
	stepsPerFatiguePoint = 200
	heartPointWeight     = 0.4
	maxFatigue           = 90
	minEnergy            = 10

	// DefaultEnergy is reported for a member who has never connected:
	// assume full energy rather than zero.
	DefaultEnergy = 100
)

// Household classification thresholds on the summed energy of both members.
const (
	balancedThreshold  = 100
	thrivingThreshold  = 150
	supportThreshold   = 50
	veryTiredThreshold = 30
)

// ComputeEnergy converts a day's raw activity into an energy score in
// [minEnergy, 100].
func ComputeEnergy(steps int64, heartPoints float64) int {
	fatigue := float64(steps)/stepsPerFatiguePoint + heartPoints*heartPointWeight
	if fatigue > maxFatigue {
		fatigue = maxFatigue
	}
	energy := int(math.Round(100 - fatigue))
	if energy < minEnergy {
		energy = minEnergy
	}
	return energy
}

// ClampEnergy bounds a manual override to the score's documented range.
func ClampEnergy(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// MemberView is one member's slice of the dashboard response.
type MemberView struct {
	Connected bool `json:"connected"`
	Energy    int  `json:"energy"`
}

// Household status labels.
const (
	StatusAlert    = "alert"
	StatusBalanced = "balanced"
	StatusThriving = "thriving"
)

// HouseholdView is the derived classification of the two energy scores. It
// is pure arithmetic over the member energies; clients may recompute it.
type HouseholdView struct {
	TotalEnergy   int    `json:"totalEnergy"`
	Status        string `json:"status"`
	NeedsSupport  Role   `json:"needsSupport,omitempty"`
	SupportAmount int    `json:"supportAmount,omitempty"`
	VeryTired     bool   `json:"veryTired,omitempty"`
}

// Household classifies the combined energy: below 100 is a deficit, 100-149
// balanced, 150 and up thriving. In a deficit the member under 50 needs
// support, the amount being what the other must compensate.
func Household(mom, dad int) HouseholdView {
	view := HouseholdView{TotalEnergy: mom + dad}

	switch {
	case view.TotalEnergy >= thrivingThreshold:
		view.Status = StatusThriving
	case view.TotalEnergy >= balancedThreshold:
		view.Status = StatusBalanced
	default:
		view.Status = StatusAlert
	}

	low, lowRole := mom, RoleMom
	if dad < low {
		low, lowRole = dad, RoleDad
	}
	if view.Status == StatusAlert && low < supportThreshold {
		view.NeedsSupport = lowRole
		view.SupportAmount = 100 - low
		view.VeryTired = low <= veryTiredThreshold
	}
	return view
}

// DashboardView is the aggregation response for one family. An unknown
// email yields exactly {found:false}.
type DashboardView struct {
	Found       bool           `json:"found"`
	SetupNeeded bool           `json:"setupNeeded,omitempty"`
	Mom         *MemberView    `json:"mom,omitempty"`
	Dad         *MemberView    `json:"dad,omitempty"`
	Household   *HouseholdView `json:"household,omitempty"`
}
