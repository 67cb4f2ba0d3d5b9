package upload

import (
	"strings"

	"github.com/docker/go-units"
)

// ScanResult is the verdict of the security-scan stage.
type ScanResult struct {
	Clean      bool     `json:"clean"`
	Threats    []string `json:"threats"`
	Scanner    string   `json:"scanner"`
	Confidence string   `json:"confidence"`
	Warning    string   `json:"warning,omitempty"`
}

// Scanner is the pluggable security-scan stage of the validation chain.
// Implementations get the spooled file path plus the client-declared name
// and the measured size.
type Scanner interface {
	Scan(path, originalName string, size int64) (ScanResult, error)
}

// HeuristicScanner is a stand-in for a real scanner (ClamAV, VirusTotal,
// ...). It flags deny-listed filename substrings as threats and unusually
// small packages with a non-blocking warning.
type HeuristicScanner struct {
	DenyPatterns       []string
	SmallFileWatermark int64
}

func NewHeuristicScanner() *HeuristicScanner {
	return &HeuristicScanner{
		DenyPatterns: []string{
			"test-malware.apk",
			"suspicious-app.apk",
			"virus-sample.apk",
		},
		SmallFileWatermark: 2 * units.MiB,
	}
}

func (s *HeuristicScanner) Scan(path, originalName string, size int64) (ScanResult, error) {
	name := strings.ToLower(originalName)
	for _, pattern := range s.DenyPatterns {
		if strings.Contains(name, pattern) {
			return ScanResult{
				Clean:      false,
				Threats:    []string{"suspicious filename pattern: " + pattern},
				Scanner:    "basic_validator",
				Confidence: "high",
			}, nil
		}
	}
	if size < s.SmallFileWatermark {
		return ScanResult{
			Clean:      true,
			Threats:    []string{},
			Scanner:    "basic_validator",
			Confidence: "medium",
			Warning:    "package file is unusually small",
		}, nil
	}
	return ScanResult{
		Clean:      true,
		Threats:    []string{},
		Scanner:    "basic_validator",
		Confidence: "high",
	}, nil
}
