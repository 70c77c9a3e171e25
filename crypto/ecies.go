//Package crypto implements the asymmetric hybrid encryption and the
// Schnorr-style signing used for proposal envelopes.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/hkdf"
)

const (
	//PublicKeySize is the length of a compressed curve point
	PublicKeySize = 32
	//SecretKeySize is the length of an encryption secret key
	SecretKeySize = 32

	nonceSize = 12
	aesKeyLen = 32
)

// PublicKey is a compressed Edwards point.
type PublicKey [PublicKeySize]byte

// SecretKey is the seed of an encryption keypair. Its scalar is derived
// ed25519-style: SHA-512 then clamp.
type SecretKey [SecretKeySize]byte

// PublicKeyFromBytes checks that b is a canonical compressed curve point
// and returns it as a PublicKey. Point.SetBytes accepts non-canonical
// encodings, so the decoded point is re-encoded and compared.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pub PublicKey
	if len(b) != PublicKeySize {
		return pub, errors.New("invalid public key length")
	}
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return pub, err
	}
	if !bytes.Equal(p.Bytes(), b) {
		return pub, errors.New("non-canonical point encoding")
	}
	copy(pub[:], b)
	return pub, nil
}

// GenerateKey produces an encryption keypair from the supplied randomness
// source.
func GenerateKey(rand io.Reader) (SecretKey, PublicKey, error) {
	var sk SecretKey
	if _, err := io.ReadFull(rand, sk[:]); err != nil {
		return sk, PublicKey{}, err
	}
	pub, err := sk.Public()
	return sk, pub, err
}

// Public derives the public key of sk.
func (sk SecretKey) Public() (PublicKey, error) {
	var pub PublicKey
	s, err := sk.scalar()
	if err != nil {
		return pub, err
	}
	p := new(edwards25519.Point).ScalarBaseMult(s)
	copy(pub[:], p.Bytes())
	return pub, nil
}

func (sk SecretKey) scalar() (*edwards25519.Scalar, error) {
	h := sha512.Sum512(sk[:])
	return edwards25519.NewScalar().SetBytesWithClamping(h[:32])
}

// Encrypt seals msg for pub. An ephemeral keypair and the AEAD nonce are
// drawn from rand, so a deterministic rand yields a deterministic
// ciphertext. Layout: ephemeral public key, nonce, sealed payload. The
// AEAD provides integrity, no outer MAC is added.
func Encrypt(pub PublicKey, msg []byte, rand io.Reader) ([]byte, error) {
	ephSK, ephPub, err := GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	key, err := encapsulate(ephSK, ephPub, pub)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, PublicKeySize+nonceSize+len(msg)+aead.Overhead())
	out = append(out, ephPub[:]...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, msg, nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt with the receiver's
// secret key.
func Decrypt(sk SecretKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < PublicKeySize+nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	var ephPub PublicKey
	copy(ephPub[:], ciphertext[:PublicKeySize])
	key, err := encapsulate(sk, ephPub, ephPub)
	if err != nil {
		return nil, err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := ciphertext[PublicKeySize : PublicKeySize+nonceSize]
	return aead.Open(nil, nonce, ciphertext[PublicKeySize+nonceSize:], nil)
}

// encapsulate derives the symmetric key from the DH shared point and the
// ephemeral public key: HKDF-SHA256(ephemeral_pub || shared_point).
func encapsulate(sk SecretKey, ephPub, peer PublicKey) ([]byte, error) {
	s, err := sk.scalar()
	if err != nil {
		return nil, err
	}
	p, err := new(edwards25519.Point).SetBytes(peer[:])
	if err != nil {
		return nil, err
	}
	shared := new(edwards25519.Point).ScalarMult(s, p)

	master := make([]byte, 0, 2*PublicKeySize)
	master = append(master, ephPub[:]...)
	master = append(master, shared.Bytes()...)

	key := make([]byte, aesKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, nil), key); err != nil {
		return nil, err
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
