package spectral

import (
	"math/cmplx"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
)

// Featurizer turns a window of samples into its one-sided magnitude spectrum
type Featurizer struct {
	fft *spectral.FFT
}

// NewFeaturizer creates a new featurizer
func NewFeaturizer() *Featurizer {
	return &Featurizer{
		fft: spectral.NewFFT(),
	}
}

// FeatureLength returns the number of spectral features for a window of n samples
func FeatureLength(n int) int {
	if n <= 0 {
		return 0
	}
	return n/2 + 1
}

// Featurize returns |DFT(window)| for bins 0..N/2 inclusive, DC through
// Nyquist for even N. The values are raw magnitudes; scaling belongs to the
// classifier.
func (f *Featurizer) Featurize(window []float64) []float64 {
	n := FeatureLength(len(window))
	features := make([]float64, n)
	if n == 0 {
		return features
	}

	spectrum := f.fft.Compute(window)
	for k := range n {
		features[k] = cmplx.Abs(spectrum[k])
	}
	return features
}

// PeakBin returns the index of the largest bin, ignoring DC when other bins exist
func PeakBin(features []float64) int {
	if len(features) == 0 {
		return -1
	}

	peak := 0
	if len(features) > 1 {
		peak = 1
	}
	for k := peak + 1; k < len(features); k++ {
		if features[k] > features[peak] {
			peak = k
		}
	}
	return peak
}

// BinFrequency returns the centre frequency in Hz of bin k for an n sample window
func BinFrequency(bin, n int, sampleRate float64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(bin) * sampleRate / float64(n)
}
