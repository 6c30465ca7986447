package scan

// Band identifies the spectrum band an AP operates in
type Band string

const (
	Band24 Band = "2.4GHz"
	Band5  Band = "5GHz"
	Band6  Band = "6GHz"
)

// Bands lists all supported bands in a fixed order
var Bands = []Band{Band24, Band5, Band6}

// ValidWidths is the fixed set of channel widths in MHz
var ValidWidths = []int{20, 40, 80, 160}

// BandFromFrequency maps a frequency in MHz to its band
func BandFromFrequency(mhz int) (Band, bool) {
	switch {
	case mhz >= 2412 && mhz <= 2484:
		return Band24, true
	case mhz >= 5180 && mhz <= 5885:
		return Band5, true
	case mhz >= 5955 && mhz <= 7115:
		return Band6, true
	default:
		return "", false
	}
}

// ChannelFromFrequency converts a primary channel frequency in MHz to a
// channel number. Returns 0 when the frequency is outside all bands.
func ChannelFromFrequency(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz - 2407) / 5
	case mhz >= 5180 && mhz <= 5885:
		return (mhz - 5000) / 5
	case mhz >= 5955 && mhz <= 7115:
		return (mhz - 5950) / 5
	default:
		return 0
	}
}

// FrequencyFromChannel converts a channel number on a band to its primary
// channel center frequency in MHz. Returns 0 when the channel does not
// exist on the band.
func FrequencyFromChannel(band Band, channel int) int {
	switch band {
	case Band24:
		if channel == 14 {
			return 2484
		}
		if channel >= 1 && channel <= 13 {
			return 2407 + channel*5
		}
	case Band5:
		if channel >= 36 && channel <= 177 {
			return 5000 + channel*5
		}
	case Band6:
		if channel >= 1 && channel <= 233 {
			return 5950 + channel*5
		}
	}
	return 0
}

// SegmentCenter returns the center frequency in MHz of the width-wide
// segment a primary channel bonds into. Segments are aligned to the
// standard channelization grid: 5 GHz blocks start at channel 36 (149
// for UNII-3), 6 GHz blocks at channel 1. On 2.4 GHz there is no grid;
// a 40 MHz channel bonds its secondary above the primary. Returns 0
// when the channel does not exist on the band.
func SegmentCenter(band Band, channel, width int) int {
	f := FrequencyFromChannel(band, channel)
	if f == 0 || width <= 20 {
		return f
	}

	if band == Band24 {
		return f + (width-20)/2
	}

	base := 1
	if band == Band5 {
		base = 36
		if channel >= 149 {
			base = 149
		}
	}

	span := width / 5 // channel numbers step by 4 per 20 MHz
	start := base + (channel-base)/span*span
	return FrequencyFromChannel(band, start) + (width-20)/2
}

// normalizeWidth maps a reported bandwidth to the fixed width set.
// The second return reports whether the width had to be inferred.
func normalizeWidth(bandwidth int, htMode string) (int, bool) {
	for _, w := range ValidWidths {
		if bandwidth == w {
			return w, false
		}
	}

	switch htMode {
	case "HT40", "VHT40", "HE40", "EHT40":
		return 40, false
	case "VHT80", "HE80", "EHT80":
		return 80, false
	case "VHT160", "HE160", "EHT160":
		return 160, false
	case "HT20", "VHT20", "HE20", "EHT20", "NOHT":
		return 20, false
	}

	return 20, true
}
