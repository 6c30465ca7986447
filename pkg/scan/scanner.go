package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
)

// Scanner performs one blocking wireless scan on the active interface.
// The hardware allows only one scan at a time; callers serialize access.
// Cancelling the context abandons the scan and no data is returned.
type Scanner interface {
	Scan(ctx context.Context) ([]RawObservation, error)
	// ConnectedBSSID reports the AP the interface is associated with,
	// or empty when unassociated. Used to pre-flag the user's own AP.
	ConnectedBSSID(ctx context.Context) (string, error)
}

// UbusScanner scans via the OpenWrt/RUTOS ubus iwinfo service, which
// reports channel width and center channel in addition to the basics.
type UbusScanner struct {
	device string
	logger *logx.Logger
}

// NewUbusScanner creates a scanner for a wireless device (e.g. "wlan0")
func NewUbusScanner(device string, logger *logx.Logger) *UbusScanner {
	return &UbusScanner{device: device, logger: logger}
}

type ubusScanResult struct {
	Results []RawObservation `json:"results"`
}

// Scan executes ubus iwinfo scan and returns the raw observations
func (s *UbusScanner) Scan(ctx context.Context) ([]RawObservation, error) {
	cmd := exec.CommandContext(ctx, "ubus", "-S", "-t", "30", "call", "iwinfo", "scan",
		fmt.Sprintf(`{"device":"%s"}`, s.device))

	output, err := cmd.Output()
	if err != nil {
		return nil, &ScanError{Op: "ubus iwinfo scan", Err: err}
	}

	var result ubusScanResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, &ScanError{Op: "parse scan results", Err: err}
	}

	s.logger.Debug("Ubus scan completed",
		"device", s.device,
		"aps_found", len(result.Results))

	return result.Results, nil
}

// ConnectedBSSID queries ubus iwinfo info for the associated BSSID
func (s *UbusScanner) ConnectedBSSID(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "ubus", "-S", "-t", "10", "call", "iwinfo", "info",
		fmt.Sprintf(`{"device":"%s"}`, s.device))

	output, err := cmd.Output()
	if err != nil {
		return "", &ScanError{Op: "ubus iwinfo info", Err: err}
	}

	var info struct {
		BSSID string `json:"bssid"`
	}
	if err := json.Unmarshal(output, &info); err != nil {
		return "", &ScanError{Op: "parse interface info", Err: err}
	}

	if info.BSSID == "" || info.BSSID == "00:00:00:00:00:00" {
		return "", nil
	}

	bssid, err := NormalizeBSSID(info.BSSID)
	if err != nil {
		return "", nil
	}
	return bssid, nil
}

// IwinfoScanner parses the plain-text iwinfo output. Fallback for systems
// without ubus; reports no width information, so all records carry the
// inferred 20 MHz default.
type IwinfoScanner struct {
	device string
	logger *logx.Logger
}

// NewIwinfoScanner creates a text-mode scanner for a wireless device
func NewIwinfoScanner(device string, logger *logx.Logger) *IwinfoScanner {
	return &IwinfoScanner{device: device, logger: logger}
}

var (
	reAddress = regexp.MustCompile(`Address:\s*([0-9A-Fa-f:]{17})`)
	reESSID   = regexp.MustCompile(`ESSID:\s*"(.*)"`)
	reChannel = regexp.MustCompile(`Channel:\s*(\d+)`)
	reSignal  = regexp.MustCompile(`Signal:\s*(-?\d+)\s*dBm`)
	reAPLine  = regexp.MustCompile(`Access Point:\s*([0-9A-Fa-f:]{17})`)
)

// Scan executes iwinfo <device> scan and parses the cell blocks
func (s *IwinfoScanner) Scan(ctx context.Context) ([]RawObservation, error) {
	cmd := exec.CommandContext(ctx, "iwinfo", s.device, "scan")
	output, err := cmd.Output()
	if err != nil {
		return nil, &ScanError{Op: "iwinfo scan", Err: err}
	}

	observations := ParseIwinfoScan(string(output))

	s.logger.Debug("Iwinfo scan completed",
		"device", s.device,
		"aps_found", len(observations))

	return observations, nil
}

// ParseIwinfoScan extracts raw observations from iwinfo scan text output.
// Exposed for testing against captured driver output.
func ParseIwinfoScan(output string) []RawObservation {
	var observations []RawObservation
	var current *RawObservation

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		if m := reAddress.FindStringSubmatch(line); m != nil {
			if current != nil && current.BSSID != "" {
				observations = append(observations, *current)
			}
			current = &RawObservation{BSSID: strings.ToLower(m[1])}
			continue
		}
		if current == nil {
			continue
		}
		if m := reESSID.FindStringSubmatch(line); m != nil {
			current.SSID = m[1]
		}
		if m := reChannel.FindStringSubmatch(line); m != nil {
			current.Channel, _ = strconv.Atoi(m[1])
		}
		if m := reSignal.FindStringSubmatch(line); m != nil {
			current.Signal, _ = strconv.Atoi(m[1])
		}
	}

	if current != nil && current.BSSID != "" {
		observations = append(observations, *current)
	}

	return observations
}

// ConnectedBSSID parses the "Access Point" line from iwinfo info output
func (s *IwinfoScanner) ConnectedBSSID(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "iwinfo", s.device, "info")
	output, err := cmd.Output()
	if err != nil {
		return "", &ScanError{Op: "iwinfo info", Err: err}
	}

	m := reAPLine.FindStringSubmatch(string(output))
	if m == nil {
		return "", nil
	}

	bssid, err := NormalizeBSSID(m[1])
	if err != nil {
		return "", nil
	}
	return bssid, nil
}
