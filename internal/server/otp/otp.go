// Package otp generates numeric one-time codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	DefaultDigits = 6
	MinDigits     = 4
	MaxDigits     = 10
)

// Generator produces fixed-width decimal codes drawn uniformly from
// [0, 10^digits). It holds no state between calls; validity windows are the
// caller's business.
type Generator struct {
	digits int
	max    *big.Int
	rand   io.Reader
}

// NewGenerator returns a Generator for the given width.
func NewGenerator(digits int) (*Generator, error) {
	if digits < MinDigits || digits > MaxDigits {
		return nil, fmt.Errorf("otp digits must be between %d and %d, got %d", MinDigits, MaxDigits, digits)
	}
	return &Generator{
		digits: digits,
		max:    new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil),
		rand:   rand.Reader,
	}, nil
}

// Digits is the width of every generated code.
func (g *Generator) Digits() int { return g.digits }

// Generate returns a new zero-padded code.
func (g *Generator) Generate() (string, error) {
	n, err := rand.Int(g.rand, g.max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", g.digits, n), nil
}
