package domain

import (
	"math"
	"time"
)

// FullDiagnosticThreshold is the recommended number of reflections before the
// full soul diagnostic is offered.
const FullDiagnosticThreshold = 3

type GardenStage string

const (
	GardenSeed      GardenStage = "seed"
	GardenSprout    GardenStage = "sprout"
	GardenLeafy     GardenStage = "leafy"
	GardenFlowering GardenStage = "flowering"
)

// DashboardSummary is the progress overview derived from a profile's history.
type DashboardSummary struct {
	ReflectionCount        int            `json:"reflectionCount"`
	AverageGrowth          float64        `json:"averageGrowth"`
	GardenStage            GardenStage    `json:"gardenStage"`
	FullDiagnosticUnlocked bool           `json:"fullDiagnosticUnlocked"`
	ReflectionsToUnlock    int            `json:"reflectionsToUnlock"`
	SinceLastReflection    *time.Duration `json:"sinceLastReflectionNs,omitempty"`
}

// Summarize computes the dashboard view of p as of now.
func Summarize(p UserProfile, now time.Time) DashboardSummary {
	count := len(p.History)
	var sum float64
	for _, r := range p.History {
		sum += r.Diagnostic.Scores.SpiritualGrowth
	}
	avg := 0.0
	if count > 0 {
		avg = math.Round(sum/float64(count)*10) / 10
	}
	remaining := FullDiagnosticThreshold - count
	if remaining < 0 {
		remaining = 0
	}
	out := DashboardSummary{
		ReflectionCount:        count,
		AverageGrowth:          avg,
		GardenStage:            gardenStage(count, avg),
		FullDiagnosticUnlocked: count >= FullDiagnosticThreshold,
		ReflectionsToUnlock:    remaining,
	}
	if p.LastReflectionAt != nil {
		since := now.Sub(*p.LastReflectionAt)
		if since < 0 {
			since = 0
		}
		out.SinceLastReflection = &since
	}
	return out
}

func gardenStage(count int, avg float64) GardenStage {
	switch {
	case count == 0:
		return GardenSeed
	case avg < 4:
		return GardenSprout
	case avg < 8:
		return GardenLeafy
	default:
		return GardenFlowering
	}
}
