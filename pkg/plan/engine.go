// Package plan proposes channel reassignments for the user's own APs.
// The pass is a local greedy heuristic over an immutable snapshot, not a
// global optimum solver: worst offenders are fixed first, and each choice
// sees the assignments already finalized in the same pass.
package plan

import (
	"fmt"
	"sort"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/overlap"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
	"github.com/markus-lassfolk/wifisurvey/pkg/site"
)

// Recommendation proposes a channel (and possibly width) for one owned
// AP. Generated fresh per analysis run, never mutated.
type Recommendation struct {
	BSSID           string    `json:"bssid"`
	SSID            string    `json:"ssid"`
	Band            scan.Band `json:"band"`
	CurrentChannel  int       `json:"current_channel"`
	ProposedChannel int       `json:"proposed_channel"`
	CurrentWidthMHz int       `json:"current_width_mhz"`
	ProposedWidth   int       `json:"proposed_width_mhz"`
	CurrentWeight   float64   `json:"current_weight"`
	ProposedWeight  float64   `json:"proposed_weight"`
	Improvement     float64   `json:"improvement"` // relative reduction, (current-proposed)/current
	Justification   string    `json:"justification"`
}

// Engine evaluates candidate channels against an overlap analyzer
type Engine struct {
	analyzer       *overlap.Analyzer
	candidates     map[scan.Band][]int
	minImprovement float64
	logger         *logx.Logger
}

// NewEngine creates a recommendation engine. candidates holds the
// region's standard non-overlapping channel list per band;
// minImprovement is the relative interference reduction below which no
// recommendation is emitted.
func NewEngine(analyzer *overlap.Analyzer, candidates map[scan.Band][]int, minImprovement float64, logger *logx.Logger) *Engine {
	return &Engine{
		analyzer:       analyzer,
		candidates:     candidates,
		minImprovement: minImprovement,
		logger:         logger,
	}
}

// Recommend proposes channel changes for the owned APs in a snapshot.
//
// Deterministic greedy pass:
//  1. Owned APs are ordered by descending current interference weight
//     (sum of incident edge weights), ties broken by ascending BSSID.
//  2. Each AP evaluates every candidate channel on its band against all
//     other APs: owned APs decided earlier in this pass keep their new
//     channel, everything else keeps its observed channel.
//  3. Tie-break: prefer the AP's current channel (stability), then the
//     lowest channel number.
//  4. A recommendation is emitted only when the chosen channel differs
//     from the current one and the relative improvement exceeds the
//     configured minimum.
func (e *Engine) Recommend(profiles []*site.APProfile, edges []overlap.Edge) []Recommendation {
	byBSSID := make(map[string]*site.APProfile, len(profiles))
	for _, p := range profiles {
		byBSSID[p.BSSID] = p
	}

	totals := overlap.WeightByBSSID(edges)

	var owned []*site.APProfile
	for _, p := range profiles {
		if p.Owned {
			owned = append(owned, p)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		wi, wj := totals[owned[i].BSSID], totals[owned[j].BSSID]
		if wi != wj {
			return wi > wj
		}
		return owned[i].BSSID < owned[j].BSSID
	})

	decided := make(map[string]int) // bssid → finalized new channel
	var recommendations []Recommendation

	for _, ap := range owned {
		candidates := e.candidates[ap.Band]
		if len(candidates) == 0 {
			e.logger.Warn("No candidate channels for band, skipping AP",
				"bssid", ap.BSSID, "band", ap.Band)
			continue
		}

		currentWeight := e.simulate(ap, ap.Channel, byBSSID, decided)

		bestChannel := ap.Channel
		bestWeight := currentWeight
		currentIsCandidate := false
		for _, ch := range candidates {
			if ch == ap.Channel {
				currentIsCandidate = true
				break
			}
		}
		if !currentIsCandidate {
			// An AP parked off the standard set still competes against
			// its own observed channel, so a move must beat it.
			bestChannel = 0
			bestWeight = -1
		}

		for _, ch := range candidates {
			w := e.simulate(ap, ch, byBSSID, decided)
			switch {
			case bestWeight < 0 || w < bestWeight:
				bestChannel, bestWeight = ch, w
			case w == bestWeight && ch == ap.Channel:
				bestChannel = ch // stability: keep the current channel on ties
			case w == bestWeight && bestChannel != ap.Channel && ch < bestChannel:
				bestChannel = ch // then prefer the lowest channel number
			}
		}

		if !currentIsCandidate && bestWeight >= currentWeight {
			bestChannel, bestWeight = ap.Channel, currentWeight
		}

		if bestChannel == ap.Channel || currentWeight <= 0 {
			decided[ap.BSSID] = ap.Channel
			continue
		}

		improvement := (currentWeight - bestWeight) / currentWeight
		if improvement <= e.minImprovement {
			decided[ap.BSSID] = ap.Channel
			continue
		}

		proposedWidth := e.proposeWidth(ap, bestWeight)
		decided[ap.BSSID] = bestChannel

		recommendations = append(recommendations, Recommendation{
			BSSID:           ap.BSSID,
			SSID:            ap.SSID,
			Band:            ap.Band,
			CurrentChannel:  ap.Channel,
			ProposedChannel: bestChannel,
			CurrentWidthMHz: ap.WidthMHz,
			ProposedWidth:   proposedWidth,
			CurrentWeight:   currentWeight,
			ProposedWeight:  bestWeight,
			Improvement:     improvement,
			Justification:   justify(ap, bestChannel, proposedWidth, improvement),
		})
	}

	e.logger.Info("Recommendation pass completed",
		"owned_aps", len(owned),
		"recommendations", len(recommendations))

	return recommendations
}

// simulate computes the interference weight the AP would see on a
// channel, against the already-finalized assignments of this pass and
// the observed channels of everything else.
func (e *Engine) simulate(ap *site.APProfile, channel int, byBSSID map[string]*site.APProfile, decided map[string]int) float64 {
	// The observed segment center is authoritative for the current
	// assignment; a candidate channel bonds into the grid-aligned
	// segment for the AP's width.
	center := ap.CenterMHz
	if channel != ap.Channel {
		center = scan.SegmentCenter(ap.Band, channel, ap.WidthMHz)
	}
	if center == 0 {
		return -1
	}

	total := 0.0
	for _, other := range byBSSID {
		if other.BSSID == ap.BSSID || other.Band != ap.Band {
			continue
		}

		otherCenter := other.CenterMHz
		if ch, ok := decided[other.BSSID]; ok && ch != other.Channel {
			otherCenter = scan.SegmentCenter(other.Band, ch, other.WidthMHz)
		}

		fraction := overlap.SpectralOverlap(center, ap.WidthMHz, otherCenter, other.WidthMHz)
		if fraction <= 0 {
			continue
		}

		proximity, _, shared := e.analyzer.Proximity(ap, other)
		if !shared {
			continue
		}

		total += fraction * proximity
	}
	return total
}

// proposeWidth keeps the current width unless the best achievable weight
// is still heavily contended, in which case a crowded 40+ MHz AP is
// advised down to 20 MHz for reliability.
func (e *Engine) proposeWidth(ap *site.APProfile, bestWeight float64) int {
	if ap.WidthMHz > 20 && bestWeight >= 1.0 {
		return 20
	}
	return ap.WidthMHz
}

func justify(ap *site.APProfile, channel, width int, improvement float64) string {
	msg := fmt.Sprintf("move %s from channel %d to %d: %.0f%% less interference",
		ap.Band, ap.Channel, channel, improvement*100)
	if width != ap.WidthMHz {
		msg += fmt.Sprintf("; reduce width to %d MHz for a crowded band", width)
	}
	return msg
}

// QuickBestChannel picks a channel from a single raw scan, before any
// survey exists: each observed channel accumulates signal+100 per AP,
// the least-loaded observed channel wins, channel 1 when nothing is
// visible. Instant suggestion only; the survey pass supersedes it.
func QuickBestChannel(raws []scan.RawObservation) int {
	weights := make(map[int]float64)
	for _, r := range raws {
		ch := r.Channel
		if ch == 0 && r.Frequency > 0 {
			ch = scan.ChannelFromFrequency(r.Frequency)
		}
		if ch == 0 {
			continue
		}
		sig := r.Signal
		if sig == 0 {
			sig = -80
		}
		weights[ch] += float64(sig) + 100.0
	}

	if len(weights) == 0 {
		return 1
	}

	best, bestWeight := 0, 0.0
	for ch, w := range weights {
		if best == 0 || w < bestWeight || (w == bestWeight && ch < best) {
			best, bestWeight = ch, w
		}
	}
	return best
}
