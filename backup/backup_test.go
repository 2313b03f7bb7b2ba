package backup

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/secp"
)

func repeatedSecret(g group.Group, b byte) group.Scalar {
	buf := bytes.Repeat([]byte{b}, 32)
	s, err := g.NewScalar().SetBytes(buf)
	if err != nil {
		panic(err)
	}
	return s
}

func TestScenario1OneOfOneBackup(t *testing.T) {
	g := &secp.Secp256k1{}
	secret := repeatedSecret(g, 0x01)

	shares, _, err := GenerateShares(g, secret, 1, 1, []byte("scenario1"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	words, err := shares[0].ToWords()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := FromWords(g, words)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Equal(shares[0]) {
		t.Error("word roundtrip did not reproduce the original share")
	}

	recovered, err := RecoverSecret(g, []SecretShare{
		{Index: scalarFromInt(g, shares[0].Index), Value: shares[0].Value, Fingerprint: shares[0].Fingerprint},
	}, shares[0].Fingerprint)
	if err != nil {
		t.Fatal(err)
	}
	if !recovered.Equal(secret) {
		t.Error("recovered secret does not match original")
	}
}

func TestScenario2TwoOfThreeAllCombinations(t *testing.T) {
	g := &secp.Secp256k1{}
	secret := repeatedSecret(g, 0x01)

	shares, sharedKey, err := GenerateShares(g, secret, 2, 3, []byte("scenario2"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	idx := []int{0, 1, 2}
	pairs := [][2]int{{idx[0], idx[1]}, {idx[0], idx[2]}, {idx[1], idx[2]}}

	var commitments []group.Point
	for _, pair := range pairs {
		s1, s2 := shares[pair[0]], shares[pair[1]]
		recovered, err := RecoverSecret(g, []SecretShare{
			{Index: scalarFromInt(g, s1.Index), Value: s1.Value, Fingerprint: s1.Fingerprint},
			{Index: scalarFromInt(g, s2.Index), Value: s2.Value, Fingerprint: s2.Fingerprint},
		}, s1.Fingerprint)
		if err != nil {
			t.Fatal(err)
		}
		if !recovered.Equal(secret) {
			t.Errorf("pair %v recovered wrong secret", pair)
		}

		images := []ShareImage{
			{Index: scalarFromInt(g, s1.Index), Image: g.NewPoint().ScalarMult(s1.Value, g.Generator()), Fingerprint: s1.Fingerprint},
			{Index: scalarFromInt(g, s2.Index), Image: g.NewPoint().ScalarMult(s2.Value, g.Generator()), Fingerprint: s2.Fingerprint},
		}
		commitments = append(commitments, reconstructGroupKeyFromImages(g, images))
	}

	for i := 1; i < len(commitments); i++ {
		if !commitments[i].Equal(commitments[0]) {
			t.Error("pairs did not yield the same polynomial commitment")
		}
	}
	if !commitments[0].Equal(sharedKey.GroupKey) {
		t.Error("reconstructed group key does not match the one from generation")
	}
}

func TestScenario3ThreeOfFiveAllCombinations(t *testing.T) {
	g := &secp.Secp256k1{}
	var secretBytes [32]byte
	for i := range secretBytes {
		secretBytes[i] = 0xde
		if i%4 == 1 {
			secretBytes[i] = 0xad
		}
		if i%4 == 2 {
			secretBytes[i] = 0xbe
		}
		if i%4 == 3 {
			secretBytes[i] = 0xef
		}
	}
	secret, err := g.NewScalar().SetBytes(secretBytes[:])
	if err != nil {
		t.Fatal(err)
	}

	shares, _, err := GenerateShares(g, secret, 3, 5, []byte("scenario3"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	var triples [][3]int
	for i := 0; i < 5; i++ {
		for j := i + 1; j < 5; j++ {
			for k := j + 1; k < 5; k++ {
				triples = append(triples, [3]int{i, j, k})
			}
		}
	}
	if len(triples) != 10 {
		t.Fatalf("expected C(5,3)=10 triples, got %d", len(triples))
	}

	var firstKey group.Point
	for _, triple := range triples {
		var secretShares []SecretShare
		var images []ShareImage
		for _, idx := range triple {
			sb := shares[idx]
			secretShares = append(secretShares, SecretShare{Index: scalarFromInt(g, sb.Index), Value: sb.Value, Fingerprint: sb.Fingerprint})
			images = append(images, ShareImage{Index: scalarFromInt(g, sb.Index), Image: g.NewPoint().ScalarMult(sb.Value, g.Generator()), Fingerprint: sb.Fingerprint})
		}
		recovered, err := RecoverSecret(g, secretShares, shares[0].Fingerprint)
		if err != nil {
			t.Fatal(err)
		}
		if !recovered.Equal(secret) {
			t.Error("triple recovered wrong secret")
		}
		key := reconstructKeyFromSecretImages(g, images)
		if firstKey == nil {
			firstKey = key
		} else if !key.Equal(firstKey) {
			t.Error("triples did not produce the same polynomial commitment")
		}
	}
}

func TestScenario4MixedPoolDiscovery(t *testing.T) {
	g := &secp.Secp256k1{}
	secret := repeatedSecret(g, 0x01)

	sharingA, _, err := GenerateShares(g, secret, 3, 5, []byte("sharingA"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sharingB, _, err := GenerateShares(g, secret, 3, 5, []byte("sharingB"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	var pool []ShareImage
	for _, b := range sharingA {
		pool = append(pool, ShareImage{Index: scalarFromInt(g, b.Index), Image: g.NewPoint().ScalarMult(b.Value, g.Generator()), Fingerprint: b.Fingerprint})
	}
	for _, b := range sharingB {
		pool = append(pool, ShareImage{Index: scalarFromInt(g, b.Index), Image: g.NewPoint().ScalarMult(b.Value, g.Generator()), Fingerprint: b.Fingerprint})
	}

	subset, _, ok := FindValidSubset(g, pool, sharingA[0].Fingerprint, 3)
	if !ok {
		t.Fatal("expected to find a valid subset")
	}
	if len(subset) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(subset))
	}
	for _, img := range subset {
		if img.Fingerprint != sharingA[0].Fingerprint {
			t.Error("subset mixed fingerprints")
		}
	}
}

func TestScenario5DifferentSecretsMixed(t *testing.T) {
	g := &secp.Secp256k1{}
	secret42 := scalarFromInt(g, 42)
	secret123 := scalarFromInt(g, 123)

	shares42, _, err := GenerateShares(g, secret42, 2, 3, []byte("s42"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	shares123, _, err := GenerateShares(g, secret123, 2, 3, []byte("s123"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	var pool []ShareImage
	for _, b := range shares42[:2] {
		pool = append(pool, ShareImage{Index: scalarFromInt(g, b.Index), Image: g.NewPoint().ScalarMult(b.Value, g.Generator()), Fingerprint: b.Fingerprint})
	}
	for _, b := range shares123[:2] {
		pool = append(pool, ShareImage{Index: scalarFromInt(g, b.Index), Image: g.NewPoint().ScalarMult(b.Value, g.Generator()), Fingerprint: b.Fingerprint})
	}

	subset42, _, ok := FindValidSubset(g, pool, shares42[0].Fingerprint, 2)
	if !ok || len(subset42) != 2 {
		t.Fatal("expected to find 2 valid images for secret 42")
	}

	recovered, err := RecoverSecret(g, []SecretShare{
		{Index: subset42[0].Index, Value: shares42[0].Value, Fingerprint: shares42[0].Fingerprint},
		{Index: subset42[1].Index, Value: shares42[1].Value, Fingerprint: shares42[1].Fingerprint},
	}, shares42[0].Fingerprint)
	if err != nil {
		t.Fatal(err)
	}
	if !recovered.Equal(secret42) && !recovered.Equal(secret123) {
		t.Error("recovered value is neither of the two original secrets")
	}
}

func TestWordRoundtripTamperDetection(t *testing.T) {
	g := &secp.Secp256k1{}
	secret := repeatedSecret(g, 0x7a)
	shares, _, err := GenerateShares(g, secret, 2, 2, []byte("tamper"), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	words, err := shares[0].ToWords()
	if err != nil {
		t.Fatal(err)
	}

	// Substitute a single word with a different valid wordlist entry.
	tampered := words
	if tampered[5] == "abandon" {
		tampered[5] = "ability"
	} else {
		tampered[5] = "abandon"
	}

	if _, err := FromWords(g, tampered); err == nil {
		t.Error("expected checksum mismatch on tampered word")
	}
}

func reconstructKeyFromSecretImages(g group.Group, images []ShareImage) group.Point {
	return reconstructGroupKeyFromImages(g, images)
}
