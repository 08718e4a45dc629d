// Package keys manages per-realm asymmetric signing material. Each realm
// owns its own key pair; tokens from one realm never verify against
// another realm's keys.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AlgRS256 = "RS256"
	AlgES256 = "ES256"
)

var ErrUnsupportedAlgorithm = errors.New("keys: unsupported signing algorithm")

// Key is a parsed signing key ready for use with golang-jwt.
type Key struct {
	KID       string
	Algorithm string
	Private   crypto.Signer
}

// Public returns the verification half of the key.
func (k *Key) Public() crypto.PublicKey {
	return k.Private.Public()
}

// SigningMethod maps the key's algorithm to a golang-jwt signing method.
func (k *Key) SigningMethod() jwt.SigningMethod {
	switch k.Algorithm {
	case AlgES256:
		return jwt.SigningMethodES256
	default:
		return jwt.SigningMethodRS256
	}
}

// generatePrivateKey creates a new key pair for the given algorithm.
func generatePrivateKey(algorithm string) (crypto.Signer, error) {
	switch algorithm {
	case AlgRS256:
		return rsa.GenerateKey(rand.Reader, 2048)
	case AlgES256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

// encodePrivateKeyPEM serializes a private key as PKCS#8 PEM.
func encodePrivateKeyPEM(key crypto.Signer) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// parsePrivateKeyPEM restores a PKCS#8 PEM private key.
func parsePrivateKeyPEM(pemData string) (crypto.Signer, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("keys: no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, errors.New("keys: parsed key is not a signer")
	}
	return signer, nil
}
