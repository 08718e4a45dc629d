package util

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoRandomBytes(t *testing.T) {
	a, err := CryptoRandomBytes(32)
	require.NoError(t, err)
	assert.Len(t, a, 32)

	b, err := CryptoRandomBytes(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "two draws should never collide")
}

func TestCryptoRandomString(t *testing.T) {
	s, err := CryptoRandomString(17)
	require.NoError(t, err)
	assert.Len(t, s, 17)

	// Must be valid hex after padding to even length
	_, err = hex.DecodeString(s + "0")
	assert.NoError(t, err)
}

func TestSHA256Hex(t *testing.T) {
	// Deterministic: same input, same digest
	assert.Equal(t, SHA256Hex("abc"), SHA256Hex("abc"))
	assert.NotEqual(t, SHA256Hex("abc"), SHA256Hex("abd"))
	assert.Len(t, SHA256Hex("abc"), 64)
}
