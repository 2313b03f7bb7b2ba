package backup

import (
	"crypto/sha256"
	"errors"
	"io"

	"github.com/frostsnap/core/group"
)

// SecretShare is a device's private share of a secret, consumed by
// [RecoverSecret].
type SecretShare struct {
	Index       group.Scalar
	Value       group.Scalar
	Fingerprint byte
}

// ShareImage is the public point corresponding to a secret share: safe to
// share, and used by [FindValidSubset] to detect which shares belong to the
// same sharing.
type ShareImage struct {
	Index       group.Scalar
	Image       group.Point
	Fingerprint byte
}

// SharedKey is the public output of a sharing or a recovery: the
// reconstructed group public key and the threshold it was built from.
type SharedKey struct {
	GroupKey  group.Point
	Threshold int
}

// GenerateShares splits secret into n Shamir shares requiring threshold of
// them to reconstruct. fingerprintTag is domain-separation context (for
// example a key name or network byte) folded into the derived fingerprint
// alongside the polynomial's public commitments, so that shares from two
// distinct DKG runs carry different fingerprints even if fingerprintTag is
// reused.
func GenerateShares(g group.Group, secret group.Scalar, threshold, n int, fingerprintTag []byte, rng io.Reader) ([]ShareBackup, SharedKey, error) {
	if threshold < 1 {
		return nil, SharedKey{}, errors.New("threshold must be at least 1")
	}
	if n < threshold {
		return nil, SharedKey{}, errors.New("n must be >= threshold")
	}
	if n > 255 {
		return nil, SharedKey{}, errors.New("n must be <= 255")
	}

	coeffs := make([]group.Scalar, threshold)
	coeffs[0] = g.NewScalar().Set(secret)
	for i := 1; i < threshold; i++ {
		c, err := g.RandomScalar(rng)
		if err != nil {
			return nil, SharedKey{}, err
		}
		coeffs[i] = c
	}

	commitments := make([]group.Point, threshold)
	for i, c := range coeffs {
		commitments[i] = g.NewPoint().ScalarMult(c, g.Generator())
	}

	fingerprint := derivePolyFingerprint(fingerprintTag, commitments)
	groupKey := commitments[0]

	shares := make([]ShareBackup, n)
	for i := 1; i <= n; i++ {
		x := scalarFromInt(g, i)
		value := evalPolynomial(g, coeffs, x)
		shares[i-1] = ShareBackup{
			G:           g,
			Index:       i,
			Value:       value,
			Fingerprint: fingerprint,
		}
	}

	return shares, SharedKey{GroupKey: groupKey, Threshold: threshold}, nil
}

func derivePolyFingerprint(tag []byte, commitments []group.Point) byte {
	h := sha256.New()
	h.Write(tag)
	for _, c := range commitments {
		h.Write(c.Bytes())
	}
	return h.Sum(nil)[0]
}

// RecoverSecret reconstructs the original secret from a set of shares, all
// of which must carry the expected fingerprint. Returns an error if there
// are too few shares, a fingerprint mismatches, or two shares share an
// index (a degenerate, unrecoverable input).
func RecoverSecret(g group.Group, shares []SecretShare, fingerprint byte) (group.Scalar, error) {
	if len(shares) == 0 {
		return nil, errors.New("no shares provided")
	}
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if s.Fingerprint != fingerprint {
			return nil, errors.New("share fingerprint mismatch")
		}
		key := string(s.Index.Bytes())
		if seen[key] {
			return nil, errors.New("duplicate share index")
		}
		seen[key] = true
	}
	return lagrangeInterpolateScalarAtZero(g, shares)
}

// FindValidSubset searches a pool of share images, filters to those
// matching fingerprint, and returns a threshold-sized ("hint") subset that
// reconstructs a consistent group public key, rejecting images that don't
// belong to the dominant sharing. Returns ok=false if fewer than hint
// matching images are available.
func FindValidSubset(g group.Group, images []ShareImage, fingerprint byte, hint int) (subset []ShareImage, key SharedKey, ok bool) {
	var filtered []ShareImage
	for _, img := range images {
		if img.Fingerprint == fingerprint {
			filtered = append(filtered, img)
		}
	}
	if len(filtered) < hint || hint < 1 {
		return nil, SharedKey{}, false
	}

	combos := combinations(filtered, hint)
	keys := make([]group.Point, len(combos))
	for i, combo := range combos {
		keys[i] = reconstructGroupKeyFromImages(g, combo)
	}

	// Majority vote across all candidate subsets: the sharing with the
	// largest number of mutually agreeing reconstructions wins, which
	// tolerates a minority of foreign or mismatched images slipping past
	// the fingerprint filter.
	counts := make([]int, len(combos))
	for i := range combos {
		for j := range combos {
			if keys[i].Equal(keys[j]) {
				counts[i]++
			}
		}
	}
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}

	return combos[best], SharedKey{GroupKey: keys[best], Threshold: hint}, true
}

// combinations returns every k-element subset of items, in the order
// generated by recursive selection (not sorted by any other key).
func combinations(items []ShareImage, k int) [][]ShareImage {
	if k <= 0 || k > len(items) {
		return nil
	}
	var out [][]ShareImage
	var pick func(start int, chosen []ShareImage)
	pick = func(start int, chosen []ShareImage) {
		if len(chosen) == k {
			combo := make([]ShareImage, k)
			copy(combo, chosen)
			out = append(out, combo)
			return
		}
		for i := start; i < len(items); i++ {
			pick(i+1, append(chosen, items[i]))
		}
	}
	pick(0, nil)
	return out
}

func reconstructGroupKeyFromImages(g group.Group, images []ShareImage) group.Point {
	result := g.NewPoint()
	for i, si := range images {
		num := scalarFromInt(g, 1)
		den := scalarFromInt(g, 1)
		for j, sj := range images {
			if i == j {
				continue
			}
			num = g.NewScalar().Mul(num, sj.Index)
			diff := g.NewScalar().Sub(sj.Index, si.Index)
			den = g.NewScalar().Mul(den, diff)
		}
		denInv, err := g.NewScalar().Invert(den)
		if err != nil {
			continue
		}
		lambda := g.NewScalar().Mul(num, denInv)
		term := g.NewPoint().ScalarMult(lambda, si.Image)
		result = g.NewPoint().Add(result, term)
	}
	return result
}

func lagrangeInterpolateScalarAtZero(g group.Group, shares []SecretShare) (group.Scalar, error) {
	total := g.NewScalar()
	for i, si := range shares {
		num := scalarFromInt(g, 1)
		den := scalarFromInt(g, 1)
		for j, sj := range shares {
			if i == j {
				continue
			}
			num = g.NewScalar().Mul(num, sj.Index)
			diff := g.NewScalar().Sub(sj.Index, si.Index)
			den = g.NewScalar().Mul(den, diff)
		}
		denInv, err := g.NewScalar().Invert(den)
		if err != nil {
			return nil, errors.New("degenerate share set: duplicate index")
		}
		lambda := g.NewScalar().Mul(num, denInv)
		term := g.NewScalar().Mul(lambda, si.Value)
		total = g.NewScalar().Add(total, term)
	}
	return total, nil
}

func scalarFromInt(g group.Group, n int) group.Scalar {
	s := g.NewScalar()
	buf := make([]byte, 32)
	buf[31] = byte(n)
	buf[30] = byte(n >> 8)
	s.SetBytes(buf)
	return s
}

func evalPolynomial(g group.Group, coeffs []group.Scalar, x group.Scalar) group.Scalar {
	result := g.NewScalar().Set(coeffs[len(coeffs)-1])
	for i := len(coeffs) - 2; i >= 0; i-- {
		result = g.NewScalar().Mul(result, x)
		result = g.NewScalar().Add(result, coeffs[i])
	}
	return result
}
