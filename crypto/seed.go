package crypto

import (
	"io"

	"golang.org/x/crypto/chacha20"
)

// ProposalSeed derives the encryption randomness seed for one proposal
// from its candidate hash. The pool protocol fixes this derivation:
// identical proposals must produce identical ciphertexts, so the seed is
// exactly the hash. Anyone who knows the hash can reproduce the ephemeral
// randomness, which is an open confidentiality question; the derivation is
// kept behind this function so it can be swapped without touching the
// packaging pipeline.
func ProposalSeed(hash [32]byte) [32]byte {
	return hash
}

// NewSeedReader returns a deterministic randomness stream for the given
// seed, suitable as the rand argument of Encrypt.
func NewSeedReader(seed [32]byte) (io.Reader, error) {
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, err
	}
	return &seedReader{c: c}, nil
}

type seedReader struct {
	c *chacha20.Cipher
}

func (r *seedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.c.XORKeyStream(p, p)
	return len(p), nil
}
