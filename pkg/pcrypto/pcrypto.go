// Package pcrypto is the pluggable crypto layer: RSA keypair
// generation/serialization, single-block
// AES-256 encode/decode, password-based symmetric key derivation, and both
// a strong (crypto/rand) and weak (math/rand, non-blocking) random source.
//
// Backend mirrors the original client's split between interchangeable SSL
// providers (OpenSSL / mbedTLS / Secure Transport): callers depend on the
// Backend interface, not on a concrete implementation, so an alternate
// backend can be substituted without touching call sites. StdlibBackend is
// the only implementation shipped here, built entirely on crypto/rsa,
// crypto/aes, crypto/sha256 and golang.org/x/crypto/pbkdf2.
package pcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	AES256BlockSize = 16
	AES256KeySize   = 32
)

var (
	ErrInvalidKeySize   = errors.New("pcrypto: symmetric key must be 32 bytes")
	ErrInvalidBlockSize = errors.New("pcrypto: block must be 16 bytes")
	ErrNotRSAKey        = errors.New("pcrypto: PEM block does not hold an RSA key")
)

// SymmetricKey is a raw AES-256 key, analogous to psync_symmetric_key_t.
type SymmetricKey [AES256KeySize]byte

// Backend is the pluggable crypto provider. StdlibBackend is the only
// implementation; a second provider would only need to satisfy this
// interface to be swapped in.
type Backend interface {
	// GenerateRSA creates a new RSA keypair of the given bit size.
	GenerateRSA(bits int) (*rsa.PrivateKey, error)

	// PublicToBinary serializes an RSA public key to DER.
	PublicToBinary(pub *rsa.PublicKey) ([]byte, error)
	// PrivateToBinary serializes an RSA private key to DER (PKCS#1).
	PrivateToBinary(priv *rsa.PrivateKey) ([]byte, error)
	// LoadPublic parses a DER-encoded RSA public key.
	LoadPublic(der []byte) (*rsa.PublicKey, error)
	// LoadPrivate parses a DER-encoded (PKCS#1) RSA private key.
	LoadPrivate(der []byte) (*rsa.PrivateKey, error)

	// RSAEncryptData OAEP-encrypts data under an RSA public key.
	RSAEncryptData(pub *rsa.PublicKey, data []byte) ([]byte, error)
	// RSADecryptData OAEP-decrypts data under an RSA private key.
	RSADecryptData(priv *rsa.PrivateKey, data []byte) ([]byte, error)
	// RSAEncryptSymmetricKey wraps a SymmetricKey for transport.
	RSAEncryptSymmetricKey(pub *rsa.PublicKey, key SymmetricKey) ([]byte, error)
	// RSADecryptSymmetricKey unwraps a SymmetricKey.
	RSADecryptSymmetricKey(priv *rsa.PrivateKey, enc []byte) (SymmetricKey, error)

	// AES256CreateEncoder builds a single-block AES-256 ECB-mode encoder.
	AES256CreateEncoder(key SymmetricKey) (cipher.Block, error)
	// AES256CreateDecoder is the decrypting counterpart; with AES the same
	// cipher.Block decrypts, so this is an alias kept for call-site symmetry
	// with the original encoder/decoder pair.
	AES256CreateDecoder(key SymmetricKey) (cipher.Block, error)

	// GenSymmetricKeyFromPass derives a SymmetricKey via PBKDF2-HMAC-SHA256.
	GenSymmetricKeyFromPass(password string, salt []byte, iterations int) SymmetricKey
	// DerivePasswordFromPassphrase composes username+passphrase into the
	// value the server-side login flow expects as the account password.
	DerivePasswordFromPassphrase(username, passphrase string) string

	// RandStrong fills buf with cryptographically secure random bytes.
	RandStrong(buf []byte)
	// RandWeak fills buf with fast, non-cryptographic random bytes, for
	// uses like padding or cache-key salts where unpredictability against
	// an attacker does not matter.
	RandWeak(buf []byte)

	// MemClean zeroes buf in place, for scrubbing key material before it
	// is released to the GC.
	MemClean(buf []byte)
}

// StdlibBackend implements Backend entirely on the Go standard library plus
// golang.org/x/crypto/pbkdf2; no second TLS/crypto library exists anywhere
// in the retrieved reference set to back an alternate implementation.
type StdlibBackend struct{}

var _ Backend = StdlibBackend{}

func (StdlibBackend) GenerateRSA(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

func (StdlibBackend) PublicToBinary(pub *rsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

func (StdlibBackend) PrivateToBinary(priv *rsa.PrivateKey) ([]byte, error) {
	return x509.MarshalPKCS1PrivateKey(priv), nil
}

func (StdlibBackend) LoadPublic(der []byte) (*rsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	return pub, nil
}

func (StdlibBackend) LoadPrivate(der []byte) (*rsa.PrivateKey, error) {
	return x509.ParsePKCS1PrivateKey(der)
}

func (StdlibBackend) RSAEncryptData(pub *rsa.PublicKey, data []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
}

func (StdlibBackend) RSADecryptData(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, data, nil)
}

func (b StdlibBackend) RSAEncryptSymmetricKey(pub *rsa.PublicKey, key SymmetricKey) ([]byte, error) {
	return b.RSAEncryptData(pub, key[:])
}

func (b StdlibBackend) RSADecryptSymmetricKey(priv *rsa.PrivateKey, enc []byte) (SymmetricKey, error) {
	var key SymmetricKey
	plain, err := b.RSADecryptData(priv, enc)
	if err != nil {
		return key, err
	}
	if len(plain) != AES256KeySize {
		return key, ErrInvalidKeySize
	}
	copy(key[:], plain)
	return key, nil
}

func (StdlibBackend) AES256CreateEncoder(key SymmetricKey) (cipher.Block, error) {
	return aes.NewCipher(key[:])
}

func (b StdlibBackend) AES256CreateDecoder(key SymmetricKey) (cipher.Block, error) {
	return b.AES256CreateEncoder(key)
}

func (StdlibBackend) GenSymmetricKeyFromPass(password string, salt []byte, iterations int) SymmetricKey {
	var key SymmetricKey
	derived := pbkdf2.Key([]byte(password), salt, iterations, AES256KeySize, sha256.New)
	copy(key[:], derived)
	return key
}

// DerivePasswordFromPassphrase hashes the account username (lowercased, so
// "Bob" and "bob" derive the same password) concatenated with passphrase.
func (StdlibBackend) DerivePasswordFromPassphrase(username, passphrase string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(username) + passphrase))
	return fmt.Sprintf("%x", sum)
}

func (StdlibBackend) RandStrong(buf []byte) {
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("pcrypto: crypto/rand failed: %v", err))
	}
}

func (StdlibBackend) RandWeak(buf []byte) {
	for i := range buf {
		buf[i] = byte(mrand.IntN(256))
	}
}

func (StdlibBackend) MemClean(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// EncodeBlock encrypts exactly one AES256BlockSize block, the original
// client's single-block ECB primitive used to wrap fixed-size metadata
// fields rather than arbitrary-length payloads.
func EncodeBlock(enc cipher.Block, plain []byte) ([]byte, error) {
	if len(plain) != AES256BlockSize {
		return nil, ErrInvalidBlockSize
	}
	out := make([]byte, AES256BlockSize)
	enc.Encrypt(out, plain)
	return out, nil
}

// DecodeBlock decrypts exactly one AES256BlockSize block.
func DecodeBlock(dec cipher.Block, cipherText []byte) ([]byte, error) {
	if len(cipherText) != AES256BlockSize {
		return nil, ErrInvalidBlockSize
	}
	out := make([]byte, AES256BlockSize)
	dec.Decrypt(out, cipherText)
	return out, nil
}

// PEMEncodePrivate wraps a DER-encoded RSA private key in a PEM block, for
// on-disk persistence of a generated device keypair.
func PEMEncodePrivate(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

// PEMEncodePublic wraps a DER-encoded RSA public key in a PEM block.
func PEMEncodePublic(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}
