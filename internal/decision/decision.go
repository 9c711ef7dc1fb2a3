// Package decision turns similarity scores into accept/reject outcomes.
package decision

import (
	"github.com/biogate/biogate/internal/acoustic"
	"github.com/biogate/biogate/internal/similarity"
)

// Modality is the biometric channel used to authenticate.
type Modality string

const (
	Face  Modality = "face"
	Voice Modality = "voice"
)

// Policy holds thresholds and blend weights. Acceptance uses strict inequality.
type Policy struct {
	FaceThreshold   float64
	VoiceThreshold  float64
	EmbeddingWeight float64
	BiometricWeight float64
}

// DefaultPolicy favours the trained embedding signal; the acoustic statistics only nudge.
func DefaultPolicy() Policy {
	return Policy{
		FaceThreshold:   0.5,
		VoiceThreshold:  0.60,
		EmbeddingWeight: 0.9,
		BiometricWeight: 0.1,
	}
}

// Outcome is the auditable result of one comparison.
type Outcome struct {
	Modality Modality
	Accepted bool
	// Score is the value compared against the threshold.
	Score     float64
	Threshold float64
	// Similarity is the embedding cosine similarity.
	Similarity float64
	// Biometric is the acoustic feature match score (voice only).
	Biometric *float64
}

// Face compares a live face embedding against the enrolled one.
func (p Policy) Face(live, enrolled []float64) (Outcome, error) {
	sim, err := similarity.Cosine(live, enrolled)
	if err != nil {
		return Outcome{}, err
	}
	return p.DecideFace(sim), nil
}

// DecideFace applies the face threshold to an already computed similarity.
func (p Policy) DecideFace(sim float64) Outcome {
	return Outcome{
		Modality:   Face,
		Accepted:   sim > p.FaceThreshold,
		Score:      sim,
		Threshold:  p.FaceThreshold,
		Similarity: sim,
	}
}

// Voice compares a live voice embedding and feature bundle against the enrolled profile.
func (p Policy) Voice(liveEmbedding, enrolledEmbedding []float64, liveFeatures, enrolledFeatures acoustic.Bundle) (Outcome, error) {
	sim, err := similarity.Cosine(liveEmbedding, enrolledEmbedding)
	if err != nil {
		return Outcome{}, err
	}
	return p.DecideVoice(sim, acoustic.Match(liveFeatures, enrolledFeatures)), nil
}

// DecideVoice blends embedding and biometric similarity and applies the voice threshold.
func (p Policy) DecideVoice(embeddingSim, biometricSim float64) Outcome {
	combined := p.Combine(embeddingSim, biometricSim)
	bio := biometricSim
	return Outcome{
		Modality:   Voice,
		Accepted:   combined > p.VoiceThreshold,
		Score:      combined,
		Threshold:  p.VoiceThreshold,
		Similarity: embeddingSim,
		Biometric:  &bio,
	}
}

// Combine returns the weighted voice confidence.
func (p Policy) Combine(embeddingSim, biometricSim float64) float64 {
	return embeddingSim*p.EmbeddingWeight + biometricSim*p.BiometricWeight
}
