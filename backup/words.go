package backup

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	bip39 "github.com/tyler-smith/go-bip39"
	"github.com/frostsnap/core/group"
)

// NumWords is the fixed length of a transcribed share backup.
const NumWords = 25

// ShareBackup is a single share's full transcribable backup: its index,
// secret value, and the fingerprint of the polynomial it was generated
// from. [ShareBackup.ToWords] renders it as 25 words from the BIP-39
// English wordlist; [FromWords] parses it back.
type ShareBackup struct {
	G           group.Group
	Index       int
	Value       group.Scalar
	Fingerprint byte
}

// Equal reports whether two backups describe the same share.
func (b ShareBackup) Equal(other ShareBackup) bool {
	if b.Index != other.Index || b.Fingerprint != other.Fingerprint {
		return false
	}
	if b.Value == nil || other.Value == nil {
		return b.Value == nil && other.Value == nil
	}
	return b.Value.Equal(other.Value)
}

// The word encoding packs, MSB-first, a 275-bit stream into 25 eleven-bit
// word indices:
//
//	[8 bits index-1][3 bits checksum][256 bits scalar][8 bits fingerprint]
//
// The checksum is the top 3 bits of SHA-256(index || scalar || fingerprint)
// and protects against a single substituted or transposed word with high
// probability, per the round-trip and tamper-detection properties this
// module must satisfy.

// ToWords renders the backup as 25 words. Returns an error if the share
// index or scalar encoding don't fit the format.
func (b ShareBackup) ToWords() ([NumWords]string, error) {
	var words [NumWords]string

	if b.Index < 1 || b.Index > 256 {
		return words, fmt.Errorf("share index %d out of range [1,256]", b.Index)
	}
	scalarBytes := b.Value.Bytes()
	if len(scalarBytes) != 32 {
		return words, fmt.Errorf("unexpected scalar encoding length %d", len(scalarBytes))
	}

	wordList := bip39.GetWordList()
	if len(wordList) != 2048 {
		return words, errors.New("unexpected bip39 wordlist size")
	}

	indexByte := byte(b.Index - 1)
	checksum := checksumBits(indexByte, scalarBytes, b.Fingerprint)

	w := newBitWriter()
	w.writeBits(uint32(indexByte), 8)
	w.writeBits(uint32(checksum), 3)
	for _, by := range scalarBytes {
		w.writeBits(uint32(by), 8)
	}
	w.writeBits(uint32(b.Fingerprint), 8)

	wordIndices := w.words11(NumWords)
	for i, idx := range wordIndices {
		words[i] = wordList[idx]
	}
	return words, nil
}

// String renders the backup as space-separated words.
func (b ShareBackup) String() string {
	words, err := b.ToWords()
	if err != nil {
		return ""
	}
	return strings.Join(words[:], " ")
}

// FromWords parses a 25-word backup, validating its checksum.
func FromWords(g group.Group, words [NumWords]string) (ShareBackup, error) {
	wordList := bip39.GetWordList()
	lookup := make(map[string]int, len(wordList))
	for i, w := range wordList {
		lookup[w] = i
	}

	bits := make([]bool, 0, NumWords*11)
	for _, word := range words {
		idx, ok := lookup[strings.ToLower(strings.TrimSpace(word))]
		if !ok {
			return ShareBackup{}, fmt.Errorf("unknown backup word %q", word)
		}
		for b := 10; b >= 0; b-- {
			bits = append(bits, (idx>>uint(b))&1 == 1)
		}
	}

	r := bitReader{bits: bits}
	indexByte := byte(r.readBits(8))
	checksum := byte(r.readBits(3))

	scalarBytes := make([]byte, 32)
	for i := range scalarBytes {
		scalarBytes[i] = byte(r.readBits(8))
	}
	fingerprint := byte(r.readBits(8))

	if expected := checksumBits(indexByte, scalarBytes, fingerprint); checksum != expected {
		return ShareBackup{}, errors.New("backup checksum mismatch")
	}

	value, err := g.NewScalar().SetBytes(scalarBytes)
	if err != nil {
		return ShareBackup{}, err
	}

	return ShareBackup{
		G:           g,
		Index:       int(indexByte) + 1,
		Value:       value,
		Fingerprint: fingerprint,
	}, nil
}

// Parse splits s on whitespace into words and parses it with [FromWords].
func Parse(g group.Group, s string) (ShareBackup, error) {
	fields := strings.Fields(s)
	if len(fields) != NumWords {
		return ShareBackup{}, fmt.Errorf("expected %d words, got %d", NumWords, len(fields))
	}
	var words [NumWords]string
	copy(words[:], fields)
	return FromWords(g, words)
}

func checksumBits(indexByte byte, scalarBytes []byte, fingerprint byte) byte {
	h := sha256.New()
	h.Write([]byte{indexByte})
	h.Write(scalarBytes)
	h.Write([]byte{fingerprint})
	sum := h.Sum(nil)
	return sum[0] >> 5
}

// bitWriter packs bits MSB-first for word encoding.
type bitWriter struct {
	bits []bool
}

func newBitWriter() *bitWriter {
	return &bitWriter{bits: make([]bool, 0, NumWords*11)}
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, (v>>uint(i))&1 == 1)
	}
}

// words11 slices the accumulated bitstream into n eleven-bit big-endian
// words, zero-padding any bits beyond what was written.
func (w *bitWriter) words11(n int) []uint16 {
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		var v uint16
		for b := 0; b < 11; b++ {
			v <<= 1
			idx := i*11 + b
			if idx < len(w.bits) && w.bits[idx] {
				v |= 1
			}
		}
		out[i] = v
	}
	return out
}

// bitReader reads bits sequentially from a pre-expanded bitstream.
type bitReader struct {
	bits []bool
	pos  int
}

func (r *bitReader) readBits(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v <<= 1
		if r.pos < len(r.bits) && r.bits[r.pos] {
			v |= 1
		}
		r.pos++
	}
	return v
}
