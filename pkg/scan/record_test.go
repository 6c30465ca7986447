package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValid(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	raw := RawObservation{
		SSID:      "HomeNet",
		BSSID:     "AA:BB:CC:DD:EE:FF",
		Channel:   6,
		Signal:    -55,
		HTMode:    "HT20",
		Frequency: 2437,
	}

	rec, err := Normalize(raw, "Ground", "Kitchen", ts)
	require.NoError(t, err)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", rec.BSSID)
	assert.Equal(t, "HomeNet", rec.SSID)
	assert.Equal(t, Band24, rec.Band)
	assert.Equal(t, 6, rec.Channel)
	assert.Equal(t, 20, rec.WidthMHz)
	assert.False(t, rec.WidthInferred)
	assert.Equal(t, 2437, rec.CenterMHz)
	assert.Equal(t, -55, rec.SignalDBm)
	assert.Equal(t, "Ground", rec.Floor)
	assert.Equal(t, "Kitchen", rec.Room)
}

func TestNormalizeIsPure(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := RawObservation{BSSID: "aa:bb:cc:dd:ee:01", Frequency: 5180, Signal: -60, HTMode: "VHT80", CenterChan1: 42}

	first, err1 := Normalize(raw, "Ground", "Office", ts)
	second, err2 := Normalize(raw, "Ground", "Office", ts)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}

func TestNormalizeValidationErrors(t *testing.T) {
	ts := time.Now()

	tests := []struct {
		name string
		raw  RawObservation
	}{
		{"malformed bssid", RawObservation{BSSID: "not-a-mac", Frequency: 2437, Signal: -50}},
		{"short bssid", RawObservation{BSSID: "aa:bb:cc", Frequency: 2437, Signal: -50}},
		{"signal too weak", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 2437, Signal: -101}},
		{"signal positive", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 2437, Signal: 3}},
		{"channel 6 on 5GHz frequency", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 5180, Channel: 6, Signal: -50}},
		{"frequency outside bands", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 900, Signal: -50}},
		{"no frequency, unresolvable channel", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Channel: 15, Signal: -50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, "Ground", "Kitchen", ts)
			require.Error(t, err)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestNormalizeWidthInference(t *testing.T) {
	ts := time.Now()

	tests := []struct {
		name     string
		raw      RawObservation
		width    int
		inferred bool
	}{
		{"explicit bandwidth", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 5180, Signal: -50, Bandwidth: 80}, 80, false},
		{"htmode VHT40", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 5180, Signal: -50, HTMode: "VHT40"}, 40, false},
		{"htmode HE160", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 5180, Signal: -50, HTMode: "HE160"}, 160, false},
		{"missing width", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 5180, Signal: -50}, 20, true},
		{"nonstandard bandwidth", RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Frequency: 5180, Signal: -50, Bandwidth: 30}, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize(tt.raw, "Ground", "Kitchen", ts)
			require.NoError(t, err)
			assert.Equal(t, tt.width, rec.WidthMHz)
			assert.Equal(t, tt.inferred, rec.WidthInferred)
		})
	}
}

func TestNormalizeBareChannelResolvesBand(t *testing.T) {
	ts := time.Now()

	rec, err := Normalize(RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Channel: 11, Signal: -70}, "F", "R", ts)
	require.NoError(t, err)
	assert.Equal(t, Band24, rec.Band)
	assert.Equal(t, 2462, rec.CenterMHz)

	rec, err = Normalize(RawObservation{BSSID: "aa:bb:cc:dd:ee:ff", Channel: 36, Signal: -70}, "F", "R", ts)
	require.NoError(t, err)
	assert.Equal(t, Band5, rec.Band)
	assert.Equal(t, 5180, rec.CenterMHz)
}

func TestChannelFrequencyTables(t *testing.T) {
	tests := []struct {
		freq    int
		channel int
		band    Band
	}{
		{2412, 1, Band24},
		{2437, 6, Band24},
		{2462, 11, Band24},
		{2484, 14, Band24},
		{5180, 36, Band5},
		{5745, 149, Band5},
		{5975, 5, Band6},
		{6135, 37, Band6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.channel, ChannelFromFrequency(tt.freq), "freq %d", tt.freq)

		band, ok := BandFromFrequency(tt.freq)
		assert.True(t, ok, "freq %d", tt.freq)
		assert.Equal(t, tt.band, band, "freq %d", tt.freq)

		assert.Equal(t, tt.freq, FrequencyFromChannel(tt.band, tt.channel), "channel %d on %s", tt.channel, tt.band)
	}

	assert.Equal(t, 0, ChannelFromFrequency(1000))
	assert.Equal(t, 0, FrequencyFromChannel(Band24, 15))
	assert.Equal(t, 0, FrequencyFromChannel(Band5, 6))
}

func TestSegmentCenter(t *testing.T) {
	tests := []struct {
		band    Band
		channel int
		width   int
		want    int
	}{
		{Band5, 36, 20, 5180},
		{Band5, 36, 40, 5190},
		{Band5, 36, 80, 5210},
		{Band5, 40, 80, 5210},
		{Band5, 48, 80, 5210},
		{Band5, 36, 160, 5250},
		{Band5, 100, 80, 5530},
		{Band5, 120, 80, 5610},
		{Band5, 149, 80, 5775},
		{Band5, 157, 40, 5795},
		{Band6, 5, 80, 5985},
		{Band24, 6, 20, 2437},
		{Band24, 6, 40, 2447},
		{Band24, 15, 40, 0}, // channel does not exist
	}

	for _, tt := range tests {
		got := SegmentCenter(tt.band, tt.channel, tt.width)
		assert.Equal(t, tt.want, got, "%s ch%d @%dMHz", tt.band, tt.channel, tt.width)
	}
}
