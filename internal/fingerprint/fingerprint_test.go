package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeLinux   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	chromeLinux2  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	firefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

func TestDerive_StableAcrossVersions(t *testing.T) {
	assert.Equal(t, Derive(chromeLinux), Derive(chromeLinux2))
}

func TestDerive_DistinctBrowsers(t *testing.T) {
	assert.NotEqual(t, Derive(chromeLinux), Derive(firefoxLinux))
	assert.NotEqual(t, Derive(chromeLinux), Derive(safariIPhone))
}

func TestDerive_EmptyUserAgent(t *testing.T) {
	fp := Derive("")
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Derive(""))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"chrome on linux", chromeLinux, "Chrome on Linux"},
		{"empty", "", "Unknown Device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.userAgent))
		})
	}
}
