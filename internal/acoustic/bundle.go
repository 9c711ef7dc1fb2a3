// Package acoustic holds the hand-computed voice statistics returned by the
// extractor and compares two bundles with relative-error tolerance scoring.
package acoustic

import "maps"

// Stats is one category of named statistics, e.g. {"mean": 118.2, "std": 9.1}.
type Stats map[string]float64

// Bundle groups the acoustic statistics of a single voice sample.
type Bundle struct {
	F0Stats              Stats `json:"f0_stats,omitempty"`
	SpectralStats        Stats `json:"spectral_stats,omitempty"`
	MFCCStats            Stats `json:"mfcc_stats,omitempty"`
	VoiceCharacteristics Stats `json:"voice_characteristics,omitempty"`
}

// Empty reports whether no category is present.
func (b Bundle) Empty() bool {
	return len(b.F0Stats) == 0 && len(b.SpectralStats) == 0 &&
		len(b.MFCCStats) == 0 && len(b.VoiceCharacteristics) == 0
}

// Clone returns a deep copy.
func (b Bundle) Clone() Bundle {
	return Bundle{
		F0Stats:              maps.Clone(b.F0Stats),
		SpectralStats:        maps.Clone(b.SpectralStats),
		MFCCStats:            maps.Clone(b.MFCCStats),
		VoiceCharacteristics: maps.Clone(b.VoiceCharacteristics),
	}
}
