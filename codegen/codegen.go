// Package codegen provides short-code generation for the link service.
// Generators should be safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// Base62Alphabet is the default short-code alphabet.
	Base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// MaxAlphabetSize bounds custom alphabets; sampling reads one byte per
	// candidate character, so the alphabet must fit in a byte.
	MaxAlphabetSize = 256
)

// Generator generates short codes.
// Generators make no uniqueness guarantee; the store enforces uniqueness on
// insert and callers retry generation on conflict.
type Generator interface {
	Generate(length int) (string, error)
}

// alphabetGenerator implements Generator over a fixed alphabet using
// crypto/rand. It is safe for concurrent use.
type alphabetGenerator struct {
	alphabet string
	// limit is the largest multiple of len(alphabet) that fits in a byte;
	// bytes at or above it are rejected to keep the distribution uniform.
	limit int
}

// NewBase62 returns a generator over the base62 alphabet.
func NewBase62() Generator {
	gen, _ := NewAlphabet(Base62Alphabet)
	return gen
}

// NewAlphabet returns a generator over a custom alphabet. The alphabet must
// contain at least two distinct single-byte characters.
func NewAlphabet(alphabet string) (Generator, error) {
	if len(alphabet) < 2 {
		return nil, errors.New("alphabet must contain at least two characters")
	}
	if len(alphabet) > MaxAlphabetSize {
		return nil, fmt.Errorf("alphabet too large (max %d characters)", MaxAlphabetSize)
	}

	seen := make(map[byte]bool, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if c >= 0x80 {
			return nil, errors.New("alphabet must be single-byte ASCII")
		}
		if seen[c] {
			return nil, fmt.Errorf("alphabet contains duplicate character %q", c)
		}
		seen[c] = true
	}

	return &alphabetGenerator{
		alphabet: alphabet,
		limit:    (256 / len(alphabet)) * len(alphabet),
	}, nil
}

// Generate generates a random code of the specified length. Random bytes are
// rejection-sampled so every alphabet character is equally likely.
func (g *alphabetGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= g.limit {
				continue
			}
			out = append(out, g.alphabet[int(b)%len(g.alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
