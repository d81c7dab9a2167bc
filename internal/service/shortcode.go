package service

import (
	"crypto/rand"
)

// Base62 character set for short code generation
const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	minCodeLength     = 6
	maxCodeLength     = 8
	defaultCodeLength = 7
)

// CodeGenerator produces uniformly random short codes over the 62-char
// alphanumeric alphabet. Each call draws fresh randomness, so codes are
// independent across concurrent callers.
type CodeGenerator struct {
	length int
}

// NewCodeGenerator creates a generator with the given code length,
// clamped to the 6..8 range the record schema allows.
func NewCodeGenerator(length int) *CodeGenerator {
	switch {
	case length <= 0:
		length = defaultCodeLength
	case length < minCodeLength:
		length = minCodeLength
	case length > maxCodeLength:
		length = maxCodeLength
	}
	return &CodeGenerator{length: length}
}

// Length returns the configured code length.
func (g *CodeGenerator) Length() int {
	return g.length
}

// Generate returns a new random code. Bytes >= 248 are rejected so the
// modulo maps the remaining range uniformly onto the 62 characters.
func (g *CodeGenerator) Generate() (string, error) {
	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(out) < g.length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if len(out) == g.length {
				break
			}
			if b >= 248 { // 248 = 62 * 4
				continue
			}
			out = append(out, base62Chars[int(b)%62])
		}
	}
	return string(out), nil
}
