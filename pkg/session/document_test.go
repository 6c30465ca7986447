package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
	"github.com/markus-lassfolk/wifisurvey/pkg/scan"
	"github.com/markus-lassfolk/wifisurvey/pkg/site"
)

func testHouse() site.House {
	return site.House{
		Name: "Home",
		Floors: []site.Floor{
			{Name: "Ground", Rooms: []site.Room{{Name: "Kitchen"}, {Name: "Living"}}},
			{Name: "Upper", Rooms: []site.Room{{Name: "Office"}}},
		},
	}
}

func testRecords() []scan.ScanRecord {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []scan.ScanRecord{
		{
			BSSID: "aa:bb:cc:dd:ee:01", SSID: "HomeNet",
			Band: scan.Band24, Channel: 6, WidthMHz: 20, CenterMHz: 2437,
			SignalDBm: -48, Timestamp: t0, Floor: "Ground", Room: "Kitchen",
		},
		{
			BSSID: "aa:bb:cc:dd:ee:02", SSID: "Neighbor",
			Band: scan.Band5, Channel: 36, WidthMHz: 80, CenterMHz: 5210,
			SignalDBm: -66, Timestamp: t0.Add(time.Minute), Floor: "Ground", Room: "Living",
		},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := NewDocument(testHouse(), testRecords())

	data, err := doc.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, decoded); diff != "" {
		t.Errorf("document changed across round trip (-want +got):\n%s", diff)
	}

	// Load → save → load is byte-for-byte stable
	again, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestDecodeRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{broken`},
		{"wrong version", `{"version": 99, "house": {"name": "H", "floors": []}, "records": []}`},
		{"duplicate floor names", `{"version": 1, "house": {"name": "H", "floors": [{"name": "A", "rooms": []}, {"name": "A", "rooms": []}]}, "records": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeNilRecords(t *testing.T) {
	doc, err := Decode([]byte(`{"version": 1, "house": {"name": "H", "floors": []}}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Records)
	assert.Empty(t, doc.Records)
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	doc := NewDocument(testHouse(), testRecords())
	require.NoError(t, doc.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(doc, loaded))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRestoreReplacesAggregatorState(t *testing.T) {
	logger := logx.NewLogger("error", "test")
	agg := site.NewAggregator(logger)

	// Pre-existing state that restore must wipe
	stale := site.House{Floors: []site.Floor{{Name: "Old", Rooms: []site.Room{{Name: "Attic"}}}}}
	require.NoError(t, agg.SetHouse(stale))
	_, err := agg.Ingest([]scan.ScanRecord{{
		BSSID: "ff:ff:ff:ff:ff:01", Band: scan.Band24, Channel: 1,
		WidthMHz: 20, CenterMHz: 2412, SignalDBm: -50,
		Timestamp: time.Now(), Floor: "Old", Room: "Attic",
	}})
	require.NoError(t, err)

	doc := NewDocument(testHouse(), testRecords())
	report, err := doc.Restore(agg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)

	assert.Equal(t, 2, agg.ProfileCount())
	_, err = agg.GetProfile("ff:ff:ff:ff:ff:01")
	assert.ErrorIs(t, err, site.ErrNotFound)

	house := agg.House()
	assert.Equal(t, "Home", house.Name)
}
