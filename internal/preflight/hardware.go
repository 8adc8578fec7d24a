package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"intelaccel/internal/system"
)

const intelVendorID = "8086"

// CheckHardware warns when no Intel graphics or NPU device can be found.
// The lspci listing is searched for the configured keywords and the sysfs
// DRM tree is scanned for Intel-owned cards.
func (c *Checker) CheckHardware(ctx context.Context) Finding {
	finding := Finding{Name: "hardware"}

	var notes []string

	matches, err := c.lspciMatches(ctx)
	if err != nil {
		notes = append(notes, fmt.Sprintf("lspci unavailable: %v", err))
	}

	cards := intelDRMCards(c.hwCfg.SysfsDRM)

	switch {
	case len(matches) > 0:
		finding.OK = true
		finding.Detail = matches[0]
	case len(cards) > 0:
		finding.OK = true
		finding.Detail = "Intel DRM device " + strings.Join(cards, ", ")
	default:
		notes = append(notes, "no Intel GPU or NPU detected")
		finding.Detail = strings.Join(notes, "; ")
	}

	return finding
}

// lspciMatches returns the lspci lines containing any keyword, case-insensitively
func (c *Checker) lspciMatches(ctx context.Context) ([]string, error) {
	res, err := c.runner.Run(ctx, system.Command{Name: "lspci"})
	if err != nil {
		return nil, err
	}
	return matchKeywords(res.Stdout, c.hwCfg.Keywords), nil
}

func matchKeywords(listing string, keywords []string) []string {
	var matches []string
	for _, line := range strings.Split(listing, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matches = append(matches, strings.TrimSpace(line))
				break
			}
		}
	}
	return matches
}

// intelDRMCards lists cardN entries under sysfsDRM whose PCI vendor is Intel
func intelDRMCards(sysfsDRM string) []string {
	if sysfsDRM == "" {
		return nil
	}
	entries, err := os.ReadDir(sysfsDRM)
	if err != nil {
		return nil
	}

	var cards []string
	for _, entry := range entries {
		if !isCardDevice(entry.Name()) {
			continue
		}
		if pciVendor(filepath.Join(sysfsDRM, entry.Name(), "device")) == intelVendorID {
			cards = append(cards, entry.Name())
		}
	}
	return cards
}

// isCardDevice matches card0, card1, ... but not connectors like card0-DP-1
func isCardDevice(name string) bool {
	suffix, ok := strings.CutPrefix(name, "card")
	if !ok || suffix == "" {
		return false
	}
	for _, ch := range suffix {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// pciVendor reads the lower-case vendor ID from the PCI_ID line of a device uevent
func pciVendor(devicePath string) string {
	data, err := os.ReadFile(filepath.Join(devicePath, "uevent")) // #nosec G304 -- sysfs path
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if value, ok := strings.CutPrefix(line, "PCI_ID="); ok {
			vendor, _, _ := strings.Cut(value, ":")
			return strings.ToLower(strings.TrimSpace(vendor))
		}
	}
	return ""
}
