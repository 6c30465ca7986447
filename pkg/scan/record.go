package scan

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// RawObservation is one AP as reported by the wireless driver for a single
// scan. Field names match the ubus iwinfo scan payload; any field other
// than BSSID may be absent depending on driver.
type RawObservation struct {
	SSID        string `json:"ssid"`
	BSSID       string `json:"bssid"`
	Channel     int    `json:"channel"`
	Signal      int    `json:"signal"` // dBm (negative)
	HTMode      string `json:"htmode"` // "HT20","VHT80","HE80"...
	Bandwidth   int    `json:"bandwidth,omitempty"`
	Frequency   int    `json:"frequency"` // MHz
	CenterChan1 int    `json:"center_chan1,omitempty"`
}

// ScanRecord is one validated, normalized AP observation tagged with the
// room it was taken in. BSSID + room + timestamp uniquely identify a
// record; BSSID alone identifies a physical AP across observations.
type ScanRecord struct {
	BSSID         string    `json:"bssid"`
	SSID          string    `json:"ssid"`
	Band          Band      `json:"band"`
	Channel       int       `json:"channel"`
	WidthMHz      int       `json:"width_mhz"`
	WidthInferred bool      `json:"width_inferred,omitempty"`
	CenterMHz     int       `json:"center_mhz"`
	SignalDBm     int       `json:"signal_dbm"`
	Timestamp     time.Time `json:"timestamp"`
	Floor         string    `json:"floor"`
	Room          string    `json:"room"`
}

// ValidationError reports a malformed raw observation. Offending records
// are discarded and logged; they never abort a scan's ingestion.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scan observation: %s: %s", e.Field, e.Reason)
}

// ScanError reports a hardware or driver failure for a whole scan.
// Callers treat it as zero records for the room, not a fatal condition.
type ScanError struct {
	Op  string
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan failed: %s: %v", e.Op, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// NormalizeBSSID canonicalizes a hardware address to lower-case
// colon-separated hex, or fails when it is not a 6-byte MAC.
func NormalizeBSSID(bssid string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(bssid))
	if err != nil || len(hw) != 6 {
		return "", &ValidationError{Field: "bssid", Reason: fmt.Sprintf("malformed hardware address %q", bssid)}
	}
	return strings.ToLower(hw.String()), nil
}

// Normalize validates a raw observation and produces a ScanRecord tagged
// with the room it was observed in. Pure function of its input.
//
// Fails when the BSSID is malformed, the signal is outside [-100, 0] dBm,
// or channel and frequency disagree for the stated band. An unknown width
// defaults to 20 MHz with WidthInferred set, which reduces overlap
// confidence downstream.
func Normalize(raw RawObservation, floor, room string, ts time.Time) (ScanRecord, error) {
	bssid, err := NormalizeBSSID(raw.BSSID)
	if err != nil {
		return ScanRecord{}, err
	}

	if raw.Signal < -100 || raw.Signal > 0 {
		return ScanRecord{}, &ValidationError{
			Field:  "signal",
			Reason: fmt.Sprintf("%d dBm outside [-100, 0]", raw.Signal),
		}
	}

	band, channel, freq, err := resolveChannel(raw)
	if err != nil {
		return ScanRecord{}, err
	}

	width, inferred := normalizeWidth(raw.Bandwidth, raw.HTMode)

	// Wide channels report their segment center separately; fall back to
	// the primary channel frequency when the driver omits it.
	center := freq
	if raw.CenterChan1 > 0 {
		if c := FrequencyFromChannel(band, raw.CenterChan1); c > 0 {
			center = c
		}
	}

	return ScanRecord{
		BSSID:         bssid,
		SSID:          raw.SSID,
		Band:          band,
		Channel:       channel,
		WidthMHz:      width,
		WidthInferred: inferred,
		CenterMHz:     center,
		SignalDBm:     raw.Signal,
		Timestamp:     ts,
		Floor:         floor,
		Room:          room,
	}, nil
}

// resolveChannel reconciles the reported channel and frequency. Frequency
// is authoritative when present; a non-zero channel must agree with it.
// Without a frequency, only unambiguous 2.4 GHz channel numbers (1-14)
// are accepted.
func resolveChannel(raw RawObservation) (Band, int, int, error) {
	if raw.Frequency > 0 {
		band, ok := BandFromFrequency(raw.Frequency)
		if !ok {
			return "", 0, 0, &ValidationError{
				Field:  "frequency",
				Reason: fmt.Sprintf("%d MHz outside known bands", raw.Frequency),
			}
		}
		channel := ChannelFromFrequency(raw.Frequency)
		if raw.Channel != 0 && raw.Channel != channel {
			return "", 0, 0, &ValidationError{
				Field:  "channel",
				Reason: fmt.Sprintf("channel %d inconsistent with %d MHz (%s)", raw.Channel, raw.Frequency, band),
			}
		}
		return band, channel, raw.Frequency, nil
	}

	if raw.Channel >= 1 && raw.Channel <= 14 {
		freq := FrequencyFromChannel(Band24, raw.Channel)
		return Band24, raw.Channel, freq, nil
	}

	// Drivers that omit frequency are legacy text interfaces that never
	// cover 6 GHz, so bare channels above 14 resolve to 5 GHz.
	if freq := FrequencyFromChannel(Band5, raw.Channel); freq > 0 {
		return Band5, raw.Channel, freq, nil
	}

	return "", 0, 0, &ValidationError{
		Field:  "channel",
		Reason: fmt.Sprintf("channel %d without frequency is not resolvable", raw.Channel),
	}
}
