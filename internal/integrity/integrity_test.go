package integrity

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secure-ehr-gateway/internal/models"
)

func sampleRow() *models.PatientRecord {
	row := &models.PatientRecord{
		FirstName:     "Jo",
		LastName:      "Doe",
		GenderCipher:  []byte{1, 2, 3},
		AgeCipher:     []byte{4, 5, 6},
		WeightCipher:  []byte{7, 8, 9},
		WeightCode:    12345,
		Height:        170,
		HealthHistory: "No allergies",
		Bucket:        7,
		ChainPos:      2,
		SeqCommitment: bytes.Repeat([]byte{0xAA}, 32),
	}
	row.ID = "5f0c0b1e-0000-0000-0000-000000000001"
	return row
}

func TestSignThenVerify(t *testing.T) {
	s := NewSigner(bytes.Repeat([]byte{0x11}, 32))
	row := sampleRow()
	row.IntegrityTag = s.Tag(row)
	assert.NoError(t, s.Verify(row))
}

func TestVerifyDetectsAnySingleFieldMutation(t *testing.T) {
	s := NewSigner(bytes.Repeat([]byte{0x11}, 32))

	mutations := map[string]func(*models.PatientRecord){
		"row id":      func(r *models.PatientRecord) { r.ID = "other-id" },
		"first name":  func(r *models.PatientRecord) { r.FirstName = "Mo" },
		"last name":   func(r *models.PatientRecord) { r.LastName = "Smith" },
		"gender ct":   func(r *models.PatientRecord) { r.GenderCipher[0] ^= 1 },
		"age ct":      func(r *models.PatientRecord) { r.AgeCipher[0] ^= 1 },
		"weight ct":   func(r *models.PatientRecord) { r.WeightCipher[0] ^= 1 },
		"weight code": func(r *models.PatientRecord) { r.WeightCode++ },
		"height":      func(r *models.PatientRecord) { r.Height = 171 },
		"history":     func(r *models.PatientRecord) { r.HealthHistory = "TAMPERED" },
		"bucket":      func(r *models.PatientRecord) { r.Bucket++ },
		"chain pos":   func(r *models.PatientRecord) { r.ChainPos++ },
		"commitment":  func(r *models.PatientRecord) { r.SeqCommitment[0] ^= 1 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			row := sampleRow()
			row.IntegrityTag = s.Tag(row)
			mutate(row)

			err := s.Verify(row)
			require.Error(t, err)
			var violation *ViolationError
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, row.ID, violation.RowID)
		})
	}
}

func TestVerifyDetectsFieldSwap(t *testing.T) {
	s := NewSigner(bytes.Repeat([]byte{0x11}, 32))
	row := sampleRow()
	row.IntegrityTag = s.Tag(row)

	// Swapping two ciphertext fields must not survive the canonical order.
	row.GenderCipher, row.AgeCipher = row.AgeCipher, row.GenderCipher
	assert.Error(t, s.Verify(row))
}

func TestForgedRowWithoutKeyFails(t *testing.T) {
	s := NewSigner(bytes.Repeat([]byte{0x11}, 32))
	forger := NewSigner(bytes.Repeat([]byte{0x22}, 32))

	row := sampleRow()
	row.IntegrityTag = forger.Tag(row)
	assert.Error(t, s.Verify(row), "a tag made under a different key must not verify")
}

func TestTagDependsOnKey(t *testing.T) {
	row := sampleRow()
	a := NewSigner(bytes.Repeat([]byte{0x11}, 32)).Tag(row)
	b := NewSigner(bytes.Repeat([]byte{0x22}, 32)).Tag(row)
	assert.NotEqual(t, a, b)
}
