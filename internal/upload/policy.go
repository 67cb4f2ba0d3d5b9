package upload

import (
	"fmt"

	"github.com/docker/go-units"

	"github.com/robotsunny/private-app-store/internal/models"
)

// zipMagic is the container signature shared by APK and IPA packages.
var zipMagic = []byte{0x50, 0x4B} // "PK"

// Policy configures the validation chain. Bounds are always explicit; the
// zero value is not a usable policy.
type Policy struct {
	// Extensions maps a declared platform to its required file extension
	// (lower case, with dot).
	Extensions map[string]string

	MinBytes int64
	MaxBytes int64

	// Magic is the required container signature at offset zero.
	Magic []byte

	// Scanner is the pluggable security-scan stage. Swapping it leaves
	// stages 1-4 untouched.
	Scanner Scanner
}

// DefaultPolicy is the package policy for mobile application uploads:
// 1 MiB to 100 MiB, ZIP container, heuristic scanner.
func DefaultPolicy() Policy {
	return Policy{
		Extensions: map[string]string{
			models.PlatformAndroid: ".apk",
			models.PlatformIOS:     ".ipa",
		},
		MinBytes: units.MiB,
		MaxBytes: 100 * units.MiB,
		Magic:    zipMagic,
		Scanner:  NewHeuristicScanner(),
	}
}

// WithBounds returns a copy of p with explicit size bounds, used to apply
// configured limits over the defaults.
func (p Policy) WithBounds(minBytes, maxBytes int64) Policy {
	p.MinBytes = minBytes
	p.MaxBytes = maxBytes
	return p
}

// formatMB renders a byte count the way size diagnostics report it,
// e.g. 512000 -> "0.49 MB".
func formatMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/float64(units.MiB))
}

// SizeMB is formatMB without the unit suffix, as stored on App.FileSizeMB.
func SizeMB(n int64) float64 {
	mb := float64(n) / float64(units.MiB)
	return float64(int64(mb*100+0.5)) / 100
}
