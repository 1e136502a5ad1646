package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dims is the dimension of the feature-hashed content vectors.
const Dims = 256

// NormalizeContent collapses whitespace and case so that trivially different
// phrasings of the same request fingerprint identically.
func NormalizeContent(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

// Fingerprint derives the cache key from provider, model and normalized
// request content.
func Fingerprint(provider, model, content string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeContent(content)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Vectorize reduces content to an L2-normalized bag-of-tokens vector using
// feature hashing. Identical content always yields an identical vector, so
// exact repeats score similarity 1.0.
func Vectorize(content string) []float32 {
	vec := make([]float32, Dims)

	tokens := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%Dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// Cosine returns the cosine similarity of two vectors in [0,1] for
// non-negative inputs. Mismatched or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector packs a vector as little-endian float32 bytes for storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a stored vector. A length mismatch means the row is
// malformed and the entry is skipped.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) != 4*Dims {
		return nil, fmt.Errorf("vector blob has %d bytes, want %d", len(buf), 4*Dims)
	}
	vec := make([]float32, Dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
