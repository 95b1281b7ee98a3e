package model

import (
	"fmt"
	"strings"
)

// Quality is an upstream audio quality tier.
type Quality string

const (
	// QualityHiResLossless is the top tier (24-bit FLAC when available).
	QualityHiResLossless Quality = "HI_RES_LOSSLESS"

	// QualityLossless is CD quality FLAC.
	QualityLossless Quality = "LOSSLESS"

	// QualityHigh is 320kbps AAC.
	QualityHigh Quality = "HIGH"

	// QualityLow is 96kbps AAC.
	QualityLow Quality = "LOW"

	// qualityHiRes is the legacy tag some mirrors report for hi-res streams.
	qualityHiRes Quality = "HI_RES"
)

// Extensions used by the file name policy.
const (
	ExtLossless = "flac"
	ExtLossy    = "m4a"
	ExtMP3      = "mp3"
)

// ParseQuality converts a user supplied tier name into a Quality.
// Matching is case-insensitive. Empty input yields QualityLossless.
func ParseQuality(s string) (Quality, error) {
	switch Quality(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return QualityLossless, nil
	case QualityHiResLossless, qualityHiRes:
		return QualityHiResLossless, nil
	case QualityLossless:
		return QualityLossless, nil
	case QualityHigh:
		return QualityHigh, nil
	case QualityLow:
		return QualityLow, nil
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

// IsLossless reports whether q is a lossless-equivalent tag.
func (q Quality) IsLossless() bool {
	switch q {
	case QualityHiResLossless, qualityHiRes, QualityLossless:
		return true
	}
	return false
}

// IsHiRes reports whether q is a hi-res-equivalent tag.
func (q Quality) IsHiRes() bool {
	return q == QualityHiResLossless || q == qualityHiRes
}

// IsLossyAAC reports whether q is one of the AAC tiers.
func (q Quality) IsLossyAAC() bool {
	return q == QualityHigh || q == QualityLow
}

// Extension returns the file extension for audio delivered at q.
// convertToMP3 only affects lossy tiers.
func (q Quality) Extension(convertToMP3 bool) string {
	if q.IsLossless() {
		return ExtLossless
	}
	if convertToMP3 {
		return ExtMP3
	}
	return ExtLossy
}

// Rank orders tiers from lowest to highest. Unknown tags rank zero.
func (q Quality) Rank() int {
	switch q {
	case QualityHiResLossless, qualityHiRes:
		return 4
	case QualityLossless:
		return 3
	case QualityHigh:
		return 2
	case QualityLow:
		return 1
	}
	return 0
}

func (q Quality) String() string {
	return string(q)
}
