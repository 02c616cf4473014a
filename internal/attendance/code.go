package attendance

import (
	"crypto/rand"
	"io"
	"math/big"
)

const (
	// CodeAlphabet is uppercase letters and digits.
	CodeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLength = 6
	// maxCodeAttempts bounds retries when a drawn code is held by another
	// open session.
	maxCodeAttempts = 8
)

// CodeSource produces candidate join codes.
type CodeSource interface {
	Next() (string, error)
}

// RandomCodes draws codes uniformly from CodeAlphabet.
type RandomCodes struct {
	length int
	rand   io.Reader
}

// NewRandomCodes returns a source of codes of the given length.
func NewRandomCodes(length int) *RandomCodes {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &RandomCodes{length: length, rand: rand.Reader}
}

func (g *RandomCodes) Next() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", err
		}
		buf[i] = CodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
