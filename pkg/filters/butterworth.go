package filters

import (
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/activity-spectra/pkg/common"
)

// Coefficients holds a digital IIR transfer function
//
//	H(z) = (b0 + b1*z^-1 + ... + bM*z^-M) / (a0 + a1*z^-1 + ... + aN*z^-N)
//
// with a0 normalised to 1.
type Coefficients struct {
	B []float64 `json:"b" yaml:"b"`
	A []float64 `json:"a" yaml:"a"`
}

// DesignButterworth computes the band-pass Butterworth filter described by cfg.
//
// The design follows the classic analog-prototype route:
//  1. poles of the order-N analog low-pass prototype on the unit circle
//  2. pre-warp the band edges for the bilinear transform (fs normalised to 2)
//  3. low-pass to band-pass transform, which doubles the order
//  4. bilinear transform of zeros, poles and gain
//  5. expand zeros and poles into polynomial coefficients
//
// The result has 2*order+1 numerator and denominator coefficients and is the
// same design produced by SciPy's butter(order, [lo, hi]/nyq, 'band').
func DesignButterworth(cfg BandpassConfig) (Coefficients, error) {
	if err := cfg.Validate(); err != nil {
		return Coefficients{}, err
	}

	nyquist := cfg.SampleRate / 2.0
	low := cfg.LowCut / nyquist
	high := cfg.HighCut / nyquist
	order := cfg.Order

	// Analog prototype: no zeros, N poles, unit gain
	poles := make([]complex128, order)
	for i := range order {
		m := float64(-order + 1 + 2*i)
		poles[i] = -cmplx.Exp(complex(0, math.Pi*m/float64(2*order)))
	}

	// Pre-warp the normalised band edges (fs = 2)
	const fs = 2.0
	warpedLow := 2 * fs * math.Tan(math.Pi*low/fs)
	warpedHigh := 2 * fs * math.Tan(math.Pi*high/fs)
	bw := warpedHigh - warpedLow
	wo := math.Sqrt(warpedLow * warpedHigh)

	// Low-pass to band-pass
	bpPoles := make([]complex128, 0, 2*order)
	wo2 := complex(wo*wo, 0)
	for _, p := range poles {
		pl := p * complex(bw/2, 0)
		root := cmplx.Sqrt(pl*pl - wo2)
		bpPoles = append(bpPoles, pl+root)
	}
	for _, p := range poles {
		pl := p * complex(bw/2, 0)
		root := cmplx.Sqrt(pl*pl - wo2)
		bpPoles = append(bpPoles, pl-root)
	}
	bpZeros := make([]complex128, order) // N zeros at the origin
	gain := math.Pow(bw, float64(order))

	// Bilinear transform
	fs2 := complex(2*fs, 0)
	dZeros := make([]complex128, 0, 2*order)
	dPoles := make([]complex128, 0, 2*order)
	num := complex(1, 0)
	den := complex(1, 0)
	for _, z := range bpZeros {
		dZeros = append(dZeros, (fs2+z)/(fs2-z))
		num *= fs2 - z
	}
	for _, p := range bpPoles {
		dPoles = append(dPoles, (fs2+p)/(fs2-p))
		den *= fs2 - p
	}
	// Zeros at infinity map to Nyquist
	for range len(bpPoles) - len(bpZeros) {
		dZeros = append(dZeros, complex(-1, 0))
	}
	gain *= real(num / den)

	b := realPoly(dZeros)
	for i := range b {
		b[i] *= gain
	}
	a := realPoly(dPoles)

	return Coefficients{B: b, A: a}, nil
}

// realPoly expands prod(x - r) into coefficients, highest power first.
// Roots come in conjugate pairs, so only the real part is kept.
func realPoly(roots []complex128) []float64 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] -= c * r
		}
		coeffs = next
	}

	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out
}

// Order returns the order of the transfer function
func (c Coefficients) Order() int {
	return max(len(c.A), len(c.B)) - 1
}

// Filter runs x through the recurrence from a zero initial state.
//
// Direct form II transposed:
//
//	y[n]   = b0*x[n] + z0[n-1]
//	zi[n]  = b(i+1)*x[n] + z(i+1)[n-1] - a(i+1)*y[n]
//
// Output sample i depends only on inputs 0..i. Inputs shorter than the filter
// transient still produce a full-length output.
func (c Coefficients) Filter(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	n := max(len(c.A), len(c.B))
	b := make([]float64, n)
	a := make([]float64, n)
	copy(b, c.B)
	copy(a, c.A)

	if a[0] != 1 {
		a0 := a[0]
		for i := range n {
			b[i] /= a0
			a[i] /= a0
		}
	}

	state := make([]float64, n)
	for i, xi := range x {
		yi := b[0]*xi + state[0]
		for j := 1; j < n; j++ {
			state[j-1] = b[j]*xi + state[j] - a[j]*yi
		}
		out[i] = yi
	}
	return out
}

// FrequencyResponse evaluates H(e^jw) at frequency (Hz) for sample rate fs.
// Returns magnitude (linear scale) and phase (radians).
func (c Coefficients) FrequencyResponse(frequency, sampleRate float64) (magnitude, phase float64) {
	w := 2.0 * math.Pi * frequency / sampleRate
	h := evalPoly(c.B, w) / evalPoly(c.A, w)
	return cmplx.Abs(h), cmplx.Phase(h)
}

// evalPoly computes sum(coeffs[k] * e^(-jwk))
func evalPoly(coeffs []float64, w float64) complex128 {
	var sum complex128
	for k, v := range coeffs {
		sum += complex(v, 0) * cmplx.Exp(complex(0, -w*float64(k)))
	}
	return sum
}

// Stable reports whether every pole lies strictly inside the unit circle
func (c Coefficients) Stable() bool {
	if len(c.A) < 2 {
		return true
	}
	// Durand-Kerner on the monic denominator
	n := len(c.A) - 1
	monic := make([]complex128, n+1)
	for i, v := range c.A {
		monic[i] = complex(v/c.A[0], 0)
	}
	roots := make([]complex128, n)
	seed := complex(0.4, 0.9)
	for i := range roots {
		roots[i] = cmplx.Pow(seed, complex(float64(i), 0))
	}
	for range 500 {
		for i := range roots {
			numer := evalMonic(monic, roots[i])
			denom := complex(1, 0)
			for j := range roots {
				if j != i {
					denom *= roots[i] - roots[j]
				}
			}
			if denom != 0 {
				roots[i] -= numer / denom
			}
		}
	}
	for _, r := range roots {
		if cmplx.Abs(r) >= 1 {
			return false
		}
	}
	return true
}

func evalMonic(coeffs []complex128, x complex128) complex128 {
	var acc complex128
	for _, c := range coeffs {
		acc = acc*x + c
	}
	return acc
}

func validCutoffs(low, high, sampleRate float64) error {
	nyquist := sampleRate / 2.0
	if low <= 0 || high <= 0 {
		return common.InvalidConfiguration("cutoff frequencies must be positive (low=%g, high=%g)", low, high)
	}
	if low >= high {
		return common.InvalidConfiguration("low cutoff (%g Hz) must be below high cutoff (%g Hz)", low, high)
	}
	if high >= nyquist {
		return common.InvalidConfiguration("high cutoff (%g Hz) must be below Nyquist frequency (%g Hz)", high, nyquist)
	}
	return nil
}
