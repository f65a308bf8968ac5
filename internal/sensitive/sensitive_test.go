package sensitive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secure-ehr-gateway/internal/models"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(bytes.Repeat([]byte{0x55}, 32))
	require.NoError(t, err)
	return c
}

func TestSealOpenRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Seal([]byte("F"))
	require.NoError(t, err)
	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("F"), plain)
}

func TestEqualPlaintextsNeverShareCiphertext(t *testing.T) {
	c := newTestCipher(t)
	// Two patients sharing a gender or age must produce unlinkable
	// ciphertexts; repeated encryptions of the same value must differ too.
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		sealed, err := c.Seal([]byte("34"))
		require.NoError(t, err)
		assert.False(t, seen[string(sealed)], "ciphertext repeated on iteration %d", i)
		seen[string(sealed)] = true
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	c := newTestCipher(t)
	sealed, err := c.Seal([]byte("70.5"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 1
	_, err = c.Open(sealed)
	assert.Error(t, err)
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	c := newTestCipher(t)
	_, err := c.Open([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestOpenRejectsForeignKey(t *testing.T) {
	c := newTestCipher(t)
	other, err := NewCipher(bytes.Repeat([]byte{0x66}, 32))
	require.NoError(t, err)

	sealed, err := c.Seal([]byte("F"))
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)
}

func TestEncryptDecryptRecord(t *testing.T) {
	c := newTestCipher(t)
	view := models.PatientView{Gender: "F", Age: 34, Weight: 70.5}
	rec := &models.PatientRecord{}

	require.NoError(t, c.EncryptRecord(view, rec))
	assert.NotEmpty(t, rec.GenderCipher)
	assert.NotEmpty(t, rec.AgeCipher)
	assert.NotEmpty(t, rec.WeightCipher)

	gender, age, weight, err := c.DecryptRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "F", gender)
	assert.Equal(t, 34, age)
	assert.Equal(t, 70.5, weight)
}

func TestNewCipherRejectsBadKey(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.Error(t, err)
}
