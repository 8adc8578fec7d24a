package preflight

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const fallbackReleaseFile = "/usr/lib/os-release"

// CheckOS warns when the distribution release does not carry the expected token
func (c *Checker) CheckOS() Finding {
	finding := Finding{Name: "os"}

	path := c.osCfg.ReleaseFile
	if _, err := os.Stat(path); os.IsNotExist(err) && c.releaseFallback != "" {
		path = c.releaseFallback
	}

	release, err := parseOSRelease(path)
	if err != nil {
		finding.Detail = fmt.Sprintf("could not read OS release: %v", err)
		return finding
	}

	pretty := release["PRETTY_NAME"]
	if pretty == "" {
		pretty = strings.TrimSpace(release["NAME"] + " " + release["VERSION"])
	}

	token := c.osCfg.ExpectedToken
	if strings.Contains(release["VERSION_ID"], token) || strings.Contains(pretty, token) {
		finding.OK = true
		finding.Detail = pretty
		return finding
	}

	finding.Detail = fmt.Sprintf("detected %q, this installer targets Ubuntu %s", pretty, token)
	return finding
}

// parseOSRelease reads a freedesktop os-release file into a key/value map.
// Comments and malformed lines are skipped and surrounding quotes removed.
//
//	NAME="Ubuntu"
//	VERSION_ID="24.04"
//	PRETTY_NAME="Ubuntu 24.04.1 LTS"
func parseOSRelease(path string) (map[string]string, error) {
	// #nosec G304 -- path comes from configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	values := make(map[string]string, 16)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" {
			continue
		}
		values[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}
