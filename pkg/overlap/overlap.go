// Package overlap computes channel-overlap edges between aggregated AP
// profiles. Edges are derived data: recomputed from a profile snapshot on
// demand, never persisted, so they are always consistent with the current
// channel assignments.
package overlap

import (
	"sort"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
	"github.com/markus-lassfolk/wifisurvey/pkg/site"
)

// Confidence qualifies an edge whose inputs include an inferred width
type Confidence string

const (
	ConfidenceFull    Confidence = "full"
	ConfidenceReduced Confidence = "reduced"
)

// Edge is the derived interference relation between two APs sharing
// spectrum. BSSID1 < BSSID2 so the pair is canonical.
type Edge struct {
	BSSID1      string     `json:"bssid1"`
	BSSID2      string     `json:"bssid2"`
	Band        scan.Band  `json:"band"`
	Fraction    float64    `json:"fraction"`  // shared bandwidth fraction, [0,1]
	Proximity   float64    `json:"proximity"` // room co-observation factor, [0,1]
	Weight      float64    `json:"weight"`    // Fraction × Proximity
	SharedRooms []string   `json:"shared_rooms,omitempty"`
	Confidence  Confidence `json:"confidence"`
}

// Analyzer computes overlap edges from immutable profile snapshots
type Analyzer struct {
	contentionDBm int // co-observation threshold, default -75
	logger        *logx.Logger
}

// NewAnalyzer creates an analyzer with the contention-relevant signal
// threshold in dBm
func NewAnalyzer(contentionDBm int, logger *logx.Logger) *Analyzer {
	return &Analyzer{contentionDBm: contentionDBm, logger: logger}
}

// isolatedScale keeps spectrum-adjacent but spatially isolated pairs
// (e.g. a neighbor's AP faintly visible in one corner room) from being
// penalized as real contention.
const isolatedScale = 0.05

// SpectralOverlap returns the fraction of the narrower channel's
// bandwidth shared by two occupied frequency ranges. 0 when the ranges
// do not intersect, 1 when one fully contains the other at equal or
// narrower width.
func SpectralOverlap(centerA, widthA, centerB, widthB int) float64 {
	loA := float64(centerA) - float64(widthA)/2
	hiA := float64(centerA) + float64(widthA)/2
	loB := float64(centerB) - float64(widthB)/2
	hiB := float64(centerB) + float64(widthB)/2

	lo := loA
	if loB > lo {
		lo = loB
	}
	hi := hiA
	if hiB < hi {
		hi = hiB
	}
	if hi <= lo {
		return 0
	}

	minWidth := float64(widthA)
	if float64(widthB) < minWidth {
		minWidth = float64(widthB)
	}
	return (hi - lo) / minWidth
}

// Proximity derives the spatial contention factor for a pair of APs from
// their per-room representative signals. Returns the factor, the rooms
// where both were observed, and whether any shared room exists at all.
//
// Both observed above the contention threshold in at least one common
// room → factor scales with the weaker of the two signals. Shared rooms
// but never both above threshold → near-zero factor. No shared room →
// no contention (callers emit no edge).
func (an *Analyzer) Proximity(a, b *site.APProfile) (float64, []string, bool) {
	sigA := a.RoomSignals()
	sigB := b.RoomSignals()

	var shared []string
	contended := 0.0
	faint := 0.0

	for room, sa := range sigA {
		sb, ok := sigB[room]
		if !ok {
			continue
		}
		shared = append(shared, room)

		weaker := sa
		if sb < weaker {
			weaker = sb
		}
		w := signalFactor(weaker)

		if sa >= an.contentionDBm && sb >= an.contentionDBm {
			if w > contended {
				contended = w
			}
		} else if w > faint {
			faint = w
		}
	}

	sort.Strings(shared)

	if len(shared) == 0 {
		return 0, nil, false
	}
	if contended > 0 {
		return contended, shared, true
	}
	return isolatedScale * faint, shared, true
}

// signalFactor maps dBm in [-100, 0] to (0, 1]
func signalFactor(dbm int) float64 {
	f := (float64(dbm) + 100.0) / 100.0
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f
}

// ComputeOverlap derives edges for every unordered pair of profiles that
// shares spectrum within a band. Bands never overlap each other. Output
// is sorted by descending interference weight (ties broken by BSSID pair)
// to feed the recommendation engine's greedy pass.
func (an *Analyzer) ComputeOverlap(profiles []*site.APProfile) []Edge {
	byBand := make(map[scan.Band][]*site.APProfile)
	for _, p := range profiles {
		byBand[p.Band] = append(byBand[p.Band], p)
	}

	var edges []Edge
	for _, band := range scan.Bands {
		group := byBand[band]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if e, ok := an.edge(group[i], group[j]); ok {
					edges = append(edges, e)
				}
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		if edges[i].BSSID1 != edges[j].BSSID1 {
			return edges[i].BSSID1 < edges[j].BSSID1
		}
		return edges[i].BSSID2 < edges[j].BSSID2
	})

	if an.logger != nil {
		an.logger.Debug("Overlap analysis completed",
			"profiles", len(profiles),
			"edges", len(edges))
	}

	return edges
}

func (an *Analyzer) edge(a, b *site.APProfile) (Edge, bool) {
	fraction := SpectralOverlap(a.CenterMHz, a.WidthMHz, b.CenterMHz, b.WidthMHz)
	if fraction <= 0 {
		return Edge{}, false
	}

	proximity, shared, ok := an.Proximity(a, b)
	if !ok {
		// Never observed in a common room: different physical zones
		return Edge{}, false
	}

	confidence := ConfidenceFull
	if a.WidthInferred || b.WidthInferred {
		confidence = ConfidenceReduced
	}

	first, second := a.BSSID, b.BSSID
	if second < first {
		first, second = second, first
	}

	return Edge{
		BSSID1:      first,
		BSSID2:      second,
		Band:        a.Band,
		Fraction:    fraction,
		Proximity:   proximity,
		Weight:      fraction * proximity,
		SharedRooms: shared,
		Confidence:  confidence,
	}, true
}

// WeightByBSSID sums incident edge weights per AP
func WeightByBSSID(edges []Edge) map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range edges {
		totals[e.BSSID1] += e.Weight
		totals[e.BSSID2] += e.Weight
	}
	return totals
}
