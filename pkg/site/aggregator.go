package site

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
)

// ErrNotFound is returned when a BSSID was never observed
var ErrNotFound = errors.New("bssid not observed")

// ErrNoRooms is returned when a scan is ingested before any room exists
var ErrNoRooms = errors.New("no rooms defined")

// IngestReport counts the outcome of one ingest run. Per-record errors
// are isolated to the record; a malformed observation never aborts the
// rest of the scan.
type IngestReport struct {
	Accepted   int      `json:"accepted"`
	Discarded  int      `json:"discarded"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors,omitempty"`
}

// Aggregator owns the BSSID → APProfile mapping for a survey session.
// Analyzers never see the live map: Snapshot returns deep copies taken
// atomically, so concurrent ingest and query cannot interleave partial
// updates.
type Aggregator struct {
	mu       sync.RWMutex
	house    House
	profiles map[string]*APProfile
	seen     map[string]struct{} // dedupe by (bssid, floor, room, timestamp)
	records  []scan.ScanRecord   // ingestion order, for session persistence
	logger   *logx.Logger
}

// NewAggregator creates an empty aggregator
func NewAggregator(logger *logx.Logger) *Aggregator {
	return &Aggregator{
		profiles: make(map[string]*APProfile),
		seen:     make(map[string]struct{}),
		logger:   logger,
	}
}

// SetHouse installs the house structure scans are tagged against
func (a *Aggregator) SetHouse(h House) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("invalid house: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.house = h

	a.logger.Info("House structure set",
		"house", h.Name,
		"floors", len(h.Floors),
		"rooms", h.RoomCount())
	return nil
}

// House returns a copy of the current house structure
func (a *Aggregator) House() House {
	a.mu.RLock()
	defer a.mu.RUnlock()

	h := a.house
	h.Floors = append([]Floor(nil), a.house.Floors...)
	for i := range h.Floors {
		h.Floors[i].Rooms = append([]Room(nil), h.Floors[i].Rooms...)
	}
	return h
}

// Reset clears all profiles and records but keeps the house structure
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles = make(map[string]*APProfile)
	a.seen = make(map[string]struct{})
	a.records = nil
}

// IngestRaw normalizes raw observations from one scan and merges the
// valid ones into the site model. Malformed observations are counted and
// logged, never fatal.
func (a *Aggregator) IngestRaw(raws []scan.RawObservation, floor, room string, ts time.Time) (*IngestReport, error) {
	report := &IngestReport{}
	records := make([]scan.ScanRecord, 0, len(raws))

	for _, raw := range raws {
		rec, err := scan.Normalize(raw, floor, room, ts)
		if err != nil {
			report.Discarded++
			report.Errors = append(report.Errors, err.Error())
			a.logger.Warn("Discarding malformed observation",
				"bssid", raw.BSSID,
				"floor", floor,
				"room", room,
				"error", err)
			continue
		}
		records = append(records, rec)
	}

	inner, err := a.Ingest(records)
	if err != nil {
		return report, err
	}

	report.Accepted = inner.Accepted
	report.Duplicates = inner.Duplicates
	report.Discarded += inner.Discarded
	report.Errors = append(report.Errors, inner.Errors...)
	return report, nil
}

// Ingest merges normalized scan records into the site model.
// Re-ingesting an identical record (same BSSID, room, timestamp) is a
// no-op, so ingestion is idempotent.
func (a *Aggregator) Ingest(records []scan.ScanRecord) (*IngestReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.house.RoomCount() == 0 {
		return nil, ErrNoRooms
	}

	report := &IngestReport{}
	for _, rec := range records {
		if !a.house.HasRoom(rec.Floor, rec.Room) {
			report.Discarded++
			report.Errors = append(report.Errors,
				fmt.Sprintf("unknown room %s/%s for %s", rec.Floor, rec.Room, rec.BSSID))
			continue
		}

		key := dedupeKey(rec)
		if _, dup := a.seen[key]; dup {
			report.Duplicates++
			continue
		}
		a.seen[key] = struct{}{}

		a.merge(rec)
		a.records = append(a.records, rec)
		report.Accepted++
	}

	a.logger.Debug("Ingest completed",
		"accepted", report.Accepted,
		"discarded", report.Discarded,
		"duplicates", report.Duplicates,
		"profiles", len(a.profiles))

	return report, nil
}

// merge applies one record to its profile. Caller holds the write lock.
func (a *Aggregator) merge(rec scan.ScanRecord) {
	p, ok := a.profiles[rec.BSSID]
	if !ok {
		p = &APProfile{
			BSSID:         rec.BSSID,
			SSID:          rec.SSID,
			Band:          rec.Band,
			Channel:       rec.Channel,
			WidthMHz:      rec.WidthMHz,
			WidthInferred: rec.WidthInferred,
			CenterMHz:     rec.CenterMHz,
			FirstSeen:     rec.Timestamp,
			LastSeen:      rec.Timestamp,
		}
		a.profiles[rec.BSSID] = p
	}

	// Keep the most recently observed SSID; hidden networks report ""
	if rec.SSID != "" && !rec.Timestamp.Before(p.LastSeen) {
		p.SSID = rec.SSID
	}

	// Channel roam: retire the previous assignment into history. Channel
	// numbers repeat across bands, so a band change alone is a roam too.
	if (rec.Channel != p.Channel || rec.Band != p.Band) && !rec.Timestamp.Before(p.LastSeen) {
		p.History = append(p.History, ChannelChange{
			Band:       p.Band,
			Channel:    p.Channel,
			WidthMHz:   p.WidthMHz,
			CenterMHz:  p.CenterMHz,
			ObservedAt: p.LastSeen,
		})
		p.Channel = rec.Channel
		p.WidthMHz = rec.WidthMHz
		p.WidthInferred = rec.WidthInferred
		p.CenterMHz = rec.CenterMHz
		p.Band = rec.Band
	}

	// A later observation with a definite width upgrades an inferred one
	if p.WidthInferred && !rec.WidthInferred && rec.Channel == p.Channel {
		p.WidthMHz = rec.WidthMHz
		p.WidthInferred = false
		p.CenterMHz = rec.CenterMHz
	}

	p.Samples = append(p.Samples, Sample{
		Floor:     rec.Floor,
		Room:      rec.Room,
		SignalDBm: rec.SignalDBm,
		Timestamp: rec.Timestamp,
	})

	if rec.Timestamp.After(p.LastSeen) {
		p.LastSeen = rec.Timestamp
	}
	if rec.Timestamp.Before(p.FirstSeen) {
		p.FirstSeen = rec.Timestamp
	}
}

// GetProfile returns a copy of the profile for a BSSID, or ErrNotFound
func (a *Aggregator) GetProfile(bssid string) (*APProfile, error) {
	normalized, err := scan.NormalizeBSSID(bssid)
	if err != nil {
		normalized = bssid
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.profiles[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, bssid)
	}
	return p.clone(), nil
}

// SetOwned flags a BSSID as part of the user's own mesh
func (a *Aggregator) SetOwned(bssid string, owned bool) error {
	normalized, err := scan.NormalizeBSSID(bssid)
	if err != nil {
		normalized = bssid
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.profiles[normalized]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, bssid)
	}
	p.Owned = owned
	return nil
}

// Snapshot returns deep copies of all profiles, sorted by BSSID.
// The snapshot is immutable and internally consistent: it reflects the
// state at call time regardless of concurrent ingest.
func (a *Aggregator) Snapshot() []*APProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*APProfile, 0, len(a.profiles))
	for _, p := range a.profiles {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BSSID < out[j].BSSID })
	return out
}

// Records returns the accepted scan records in ingestion order
func (a *Aggregator) Records() []scan.ScanRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]scan.ScanRecord(nil), a.records...)
}

// ChannelCensus counts observed APs per current channel on a band
func (a *Aggregator) ChannelCensus(band scan.Band) map[int]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	census := make(map[int]int)
	for _, p := range a.profiles {
		if p.Band == band {
			census[p.Channel]++
		}
	}
	return census
}

// ProfileCount returns the number of distinct APs observed
func (a *Aggregator) ProfileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.profiles)
}

func dedupeKey(rec scan.ScanRecord) string {
	return fmt.Sprintf("%s|%s|%s|%d", rec.BSSID, rec.Floor, rec.Room, rec.Timestamp.UnixNano())
}
