package crypto

import (
	"errors"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/gtank/merlin"
)

const (
	//SeedSize is the length of a mini secret key seed
	SeedSize = 32
	//SignatureSize is the length of an encoded signature
	SignatureSize = 64
)

// Signer holds the long-term signing keypair, expanded ed25519-style from
// a fixed-length seed.
type Signer struct {
	secret *schnorrkel.SecretKey
	public *schnorrkel.PublicKey
}

// NewSigner expands seed into a signing keypair.
func NewSigner(seed [SeedSize]byte) (*Signer, error) {
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(seed)
	if err != nil {
		return nil, err
	}
	secret := mini.ExpandEd25519()
	public, err := secret.Public()
	if err != nil {
		return nil, err
	}
	return &Signer{secret: secret, public: public}, nil
}

// Sign produces a signature over msg under the domain-separation context
// ctx. The signature verifies only under the same context.
func (s *Signer) Sign(ctx, msg []byte) ([]byte, error) {
	sig, err := s.secret.Sign(signingContext(ctx, msg))
	if err != nil {
		return nil, err
	}
	enc := sig.Encode()
	return enc[:], nil
}

// Public returns the verification key of the signer.
func (s *Signer) Public() *schnorrkel.PublicKey {
	return s.public
}

// Verify checks sig over msg under ctx against pub.
func Verify(pub *schnorrkel.PublicKey, ctx, msg, sig []byte) (bool, error) {
	if len(sig) != SignatureSize {
		return false, errors.New("invalid signature length")
	}
	var raw [SignatureSize]byte
	copy(raw[:], sig)
	decoded := &schnorrkel.Signature{}
	if err := decoded.Decode(raw); err != nil {
		return false, err
	}
	return pub.Verify(decoded, signingContext(ctx, msg))
}

func signingContext(ctx, msg []byte) *merlin.Transcript {
	return schnorrkel.NewSigningContext(ctx, msg)
}
