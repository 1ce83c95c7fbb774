package main

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// EmbeddingDim is the dimension of prompt embeddings stored in history.
const EmbeddingDim = 384

// Embedder turns prompts into fixed-size vectors for history search.
type Embedder struct {
	dim int
}

// NewEmbedder creates a new Embedder instance
func NewEmbedder() *Embedder {
	return &Embedder{dim: EmbeddingDim}
}

// Embed returns an L2-normalized bag-of-words vector for text using the
// hashing trick. It needs no model or network call, so similar prompts
// land near each other only when they share words.
func (e *Embedder) Embed(text string) []float32 {
	vec := make([]float32, e.dim)

	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		idx := int(sum % uint32(e.dim))
		// high bit picks the sign to spread collisions
		if sum&0x80000000 != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
