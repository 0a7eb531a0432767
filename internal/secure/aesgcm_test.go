package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	c, err := NewCipher("test-secret")
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("010-1234-5678"))
	require.NoError(t, err)

	opened, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "010-1234-5678", string(opened))
}

func TestOpenRejectsTamperedPayload(t *testing.T) {
	c, err := NewCipher("test-secret")
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("010-1234-5678"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF
	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	c1, err := NewCipher("secret-a")
	require.NoError(t, err)
	c2, err := NewCipher("secret-b")
	require.NoError(t, err)

	sealed, err := c1.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = c2.Open(sealed)
	assert.Error(t, err)
}

func TestNewCipherEmptySecret(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)
}

func TestOpenShortPayload(t *testing.T) {
	c, err := NewCipher("test-secret")
	require.NoError(t, err)

	_, err = c.Open([]byte{0x01, 0x02})
	assert.Error(t, err)
}
