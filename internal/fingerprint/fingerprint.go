package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mileusna/useragent"
)

// Derive produces a stable device fingerprint from a raw User-Agent string.
// Only coarse characteristics (browser, OS, device class) feed the hash so
// minor version bumps of the same browser still map to the same device.
func Derive(userAgentString string) string {
	ua := useragent.Parse(userAgentString)

	browser := ua.Name
	if browser == "" {
		browser = "unknown"
	}

	os := ua.OS
	if os == "" {
		os = "unknown"
	}

	deviceType := "desktop"
	switch {
	case ua.Mobile:
		deviceType = "mobile"
	case ua.Tablet:
		deviceType = "tablet"
	case ua.Bot:
		deviceType = "bot"
	}

	normalized := strings.ToLower(strings.Join([]string{browser, os, deviceType}, "|"))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// Describe returns a human-readable label for session listings.
func Describe(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgentString)

	browser := "Unknown Browser"
	if ua.Name != "" {
		browser = ua.Name
	}

	if ua.OS != "" {
		return browser + " on " + ua.OS
	}

	return browser
}
