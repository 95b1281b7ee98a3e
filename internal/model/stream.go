package model

// StreamDescriptor describes a resolved, playable stream.
//
// Descriptors are produced per resolution call and must not be cached:
// mirror-issued URLs are often signed and short-lived.
type StreamDescriptor struct {
	// URL is the direct media URL.
	URL string

	// Quality is the tier the mirror actually served.
	Quality Quality

	// ReplayGain is the track gain in dB, if reported.
	ReplayGain *float64

	// SampleRate in Hz, zero if unknown.
	SampleRate int

	// BitDepth in bits, zero if unknown.
	BitDepth int
}
