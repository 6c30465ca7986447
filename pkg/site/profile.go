package site

import (
	"time"

	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
)

// Sample is one signal-strength observation of an AP in one room.
// Samples accumulate; a room's signal for an AP is a distribution, and
// its representative value is the maximum observed strength (transient
// fades must not undercount coverage).
type Sample struct {
	Floor     string    `json:"floor"`
	Room      string    `json:"room"`
	SignalDBm int       `json:"signal_dbm"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelChange records a previous channel assignment of an AP.
// APs legitimately roam channels between scans; this is never treated as
// two distinct APs.
type ChannelChange struct {
	Band       scan.Band `json:"band"`
	Channel    int       `json:"channel"`
	WidthMHz   int       `json:"width_mhz"`
	CenterMHz  int       `json:"center_mhz"`
	ObservedAt time.Time `json:"observed_at"`
}

// APProfile is the aggregated view of one BSSID across all scans
type APProfile struct {
	BSSID         string          `json:"bssid"`
	SSID          string          `json:"ssid"`
	Band          scan.Band       `json:"band"`
	Channel       int             `json:"channel"`
	WidthMHz      int             `json:"width_mhz"`
	WidthInferred bool            `json:"width_inferred,omitempty"`
	CenterMHz     int             `json:"center_mhz"`
	History       []ChannelChange `json:"history,omitempty"`
	Samples       []Sample        `json:"samples"`
	Owned         bool            `json:"owned"`
	FirstSeen     time.Time       `json:"first_seen"`
	LastSeen      time.Time       `json:"last_seen"`
}

// RoomSignal returns the representative (maximum) signal observed for
// this AP in a room, and whether the AP was observed there at all.
func (p *APProfile) RoomSignal(floor, room string) (int, bool) {
	best := -200
	seen := false
	for _, s := range p.Samples {
		if s.Floor == floor && s.Room == room {
			seen = true
			if s.SignalDBm > best {
				best = s.SignalDBm
			}
		}
	}
	return best, seen
}

// RoomSignals returns the representative signal per room, keyed by
// "floor/room". Used for heatmap display and overlap proximity.
func (p *APProfile) RoomSignals() map[string]int {
	out := make(map[string]int)
	for _, s := range p.Samples {
		key := s.Floor + "/" + s.Room
		if cur, ok := out[key]; !ok || s.SignalDBm > cur {
			out[key] = s.SignalDBm
		}
	}
	return out
}

// BestSignal returns the strongest signal observed anywhere
func (p *APProfile) BestSignal() int {
	best := -200
	for _, s := range p.Samples {
		if s.SignalDBm > best {
			best = s.SignalDBm
		}
	}
	return best
}

// clone returns a deep copy so analyzers operate on immutable snapshots
func (p *APProfile) clone() *APProfile {
	cp := *p
	cp.History = append([]ChannelChange(nil), p.History...)
	cp.Samples = append([]Sample(nil), p.Samples...)
	return &cp
}
