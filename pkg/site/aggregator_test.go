package site

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
)

func testLogger() *logx.Logger {
	return logx.NewLogger("error", "test")
}

func testHouse() House {
	return House{
		Name: "Test House",
		Floors: []Floor{
			{Name: "Ground", Rooms: []Room{{Name: "Kitchen"}, {Name: "Living"}}},
			{Name: "Upper", Rooms: []Room{{Name: "Office"}}},
		},
	}
}

func record(bssid, floor, room string, channel, signal int, ts time.Time) scan.ScanRecord {
	return scan.ScanRecord{
		BSSID:     bssid,
		SSID:      "Net-" + bssid[len(bssid)-2:],
		Band:      scan.Band24,
		Channel:   channel,
		WidthMHz:  20,
		CenterMHz: scan.FrequencyFromChannel(scan.Band24, channel),
		SignalDBm: signal,
		Timestamp: ts,
		Floor:     floor,
		Room:      room,
	}
}

func TestHouseValidate(t *testing.T) {
	h := testHouse()
	require.NoError(t, h.Validate())
	assert.Equal(t, 3, h.RoomCount())
	assert.True(t, h.HasRoom("Ground", "Kitchen"))
	assert.False(t, h.HasRoom("Upper", "Kitchen"))

	dupFloor := House{Floors: []Floor{{Name: "A"}, {Name: "A"}}}
	assert.Error(t, dupFloor.Validate())

	dupRoom := House{Floors: []Floor{{Name: "A", Rooms: []Room{{Name: "R"}, {Name: "R"}}}}}
	assert.Error(t, dupRoom.Validate())
}

func TestIngestRequiresRooms(t *testing.T) {
	agg := NewAggregator(testLogger())

	_, err := agg.Ingest([]scan.ScanRecord{record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, time.Now())})
	assert.ErrorIs(t, err, ErrNoRooms)
}

func TestIngestIdempotence(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	records := []scan.ScanRecord{
		record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, ts),
		record("aa:bb:cc:dd:ee:02", "Ground", "Kitchen", 11, -62, ts),
	}

	first, err := agg.Ingest(records)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Accepted)

	second, err := agg.Ingest(records)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Accepted)
	assert.Equal(t, 2, second.Duplicates)

	snapshot := agg.Snapshot()
	require.Len(t, snapshot, 2)
	for _, p := range snapshot {
		assert.Len(t, p.Samples, 1)
	}
	assert.Len(t, agg.Records(), 2)
}

func TestIngestUnknownRoomIsolated(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	ts := time.Now()
	report, err := agg.Ingest([]scan.ScanRecord{
		record("aa:bb:cc:dd:ee:01", "Ground", "Garage", 6, -50, ts), // no such room
		record("aa:bb:cc:dd:ee:02", "Ground", "Kitchen", 6, -50, ts),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Discarded)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Garage")
}

func TestChannelRoamKeepsOneProfile(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(10 * time.Minute)

	_, err := agg.Ingest([]scan.ScanRecord{
		record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, t0),
		record("aa:bb:cc:dd:ee:01", "Upper", "Office", 1, -64, t1),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, agg.ProfileCount())

	p, err := agg.GetProfile("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Channel)
	require.Len(t, p.History, 1)
	assert.Equal(t, 6, p.History[0].Channel)
	assert.Equal(t, t0, p.History[0].ObservedAt)
	assert.Len(t, p.Samples, 2)
	assert.Equal(t, t0, p.FirstSeen)
	assert.Equal(t, t1, p.LastSeen)
}

func TestBandRoamKeepsOneProfile(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Channel numbers repeat across bands; a tri-band unit moving its
	// backhaul keeps the same channel number on a different band
	before := record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, t0)
	after := scan.ScanRecord{
		BSSID:     "aa:bb:cc:dd:ee:01",
		SSID:      "Net-01",
		Band:      scan.Band6,
		Channel:   6,
		WidthMHz:  20,
		CenterMHz: scan.FrequencyFromChannel(scan.Band6, 6),
		SignalDBm: -58,
		Timestamp: t0.Add(10 * time.Minute),
		Floor:     "Ground",
		Room:      "Kitchen",
	}

	_, err := agg.Ingest([]scan.ScanRecord{before, after})
	require.NoError(t, err)

	p, err := agg.GetProfile("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.Equal(t, scan.Band6, p.Band)
	assert.Equal(t, scan.FrequencyFromChannel(scan.Band6, 6), p.CenterMHz)
	require.Len(t, p.History, 1)
	assert.Equal(t, scan.Band24, p.History[0].Band)
	assert.Equal(t, 6, p.History[0].Channel)
}

func TestRoomSignalUsesMaximum(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err := agg.Ingest([]scan.ScanRecord{
		record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -70, t0),
		record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -52, t0.Add(time.Minute)),
		record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -65, t0.Add(2*time.Minute)),
	})
	require.NoError(t, err)

	p, err := agg.GetProfile("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.Len(t, p.Samples, 3, "samples accumulate, never overwrite")

	sig, seen := p.RoomSignal("Ground", "Kitchen")
	assert.True(t, seen)
	assert.Equal(t, -52, sig, "transient fades must not undercount coverage")

	_, seen = p.RoomSignal("Upper", "Office")
	assert.False(t, seen)
}

func TestGetProfileNotFound(t *testing.T) {
	agg := NewAggregator(testLogger())

	_, err := agg.GetProfile("aa:bb:cc:dd:ee:99")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSetOwned(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	_, err := agg.Ingest([]scan.ScanRecord{record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, time.Now())})
	require.NoError(t, err)

	// Accepts any BSSID formatting
	require.NoError(t, agg.SetOwned("AA:BB:CC:DD:EE:01", true))

	p, err := agg.GetProfile("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.True(t, p.Owned)

	assert.True(t, errors.Is(agg.SetOwned("aa:bb:cc:dd:ee:99", true), ErrNotFound))
}

func TestSnapshotIsImmutableCopy(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	_, err := agg.Ingest([]scan.ScanRecord{record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, time.Now())})
	require.NoError(t, err)

	snapshot := agg.Snapshot()
	require.Len(t, snapshot, 1)

	snapshot[0].Owned = true
	snapshot[0].Samples[0].SignalDBm = -10

	p, err := agg.GetProfile("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.False(t, p.Owned, "mutating a snapshot must not touch the aggregator")
	assert.Equal(t, -50, p.Samples[0].SignalDBm)
}

func TestSnapshotSortedByBSSID(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	ts := time.Now()
	_, err := agg.Ingest([]scan.ScanRecord{
		record("cc:00:00:00:00:01", "Ground", "Kitchen", 6, -50, ts),
		record("aa:00:00:00:00:01", "Ground", "Kitchen", 1, -55, ts),
		record("bb:00:00:00:00:01", "Ground", "Kitchen", 11, -60, ts),
	})
	require.NoError(t, err)

	snapshot := agg.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "aa:00:00:00:00:01", snapshot[0].BSSID)
	assert.Equal(t, "bb:00:00:00:00:01", snapshot[1].BSSID)
	assert.Equal(t, "cc:00:00:00:00:01", snapshot[2].BSSID)
}

func TestChannelCensus(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	ts := time.Now()
	_, err := agg.Ingest([]scan.ScanRecord{
		record("aa:00:00:00:00:01", "Ground", "Kitchen", 6, -50, ts),
		record("aa:00:00:00:00:02", "Ground", "Kitchen", 6, -60, ts),
		record("aa:00:00:00:00:03", "Ground", "Kitchen", 11, -65, ts),
	})
	require.NoError(t, err)

	census := agg.ChannelCensus(scan.Band24)
	assert.Equal(t, map[int]int{6: 2, 11: 1}, census)
	assert.Empty(t, agg.ChannelCensus(scan.Band5))
}

func TestIngestRawIsolatesMalformedRecords(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	raws := []scan.RawObservation{
		{BSSID: "aa:bb:cc:dd:ee:01", Frequency: 2437, Signal: -50},
		{BSSID: "broken", Frequency: 2437, Signal: -50},
		{BSSID: "aa:bb:cc:dd:ee:02", Frequency: 2437, Signal: -300},
		{BSSID: "aa:bb:cc:dd:ee:03", Frequency: 2462, Signal: -61},
	}

	report, err := agg.IngestRaw(raws, "Ground", "Kitchen", time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 2, report.Discarded)
	assert.Len(t, report.Errors, 2)
	assert.Equal(t, 2, agg.ProfileCount())
}

func TestInferredWidthUpgraded(t *testing.T) {
	agg := NewAggregator(testLogger())
	require.NoError(t, agg.SetHouse(testHouse()))

	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	inferred := record("aa:bb:cc:dd:ee:01", "Ground", "Kitchen", 6, -50, t0)
	inferred.WidthInferred = true

	definite := record("aa:bb:cc:dd:ee:01", "Ground", "Living", 6, -58, t0.Add(time.Minute))
	definite.WidthMHz = 40
	definite.CenterMHz = 2447

	_, err := agg.Ingest([]scan.ScanRecord{inferred, definite})
	require.NoError(t, err)

	p, err := agg.GetProfile("aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.Equal(t, 40, p.WidthMHz)
	assert.False(t, p.WidthInferred)
	assert.Equal(t, 2447, p.CenterMHz)
}
