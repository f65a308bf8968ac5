package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secure-ehr-gateway/internal/models"
)

func sampleView() models.PatientView {
	return models.PatientView{
		ID:            "row-1",
		FirstName:     "Jo",
		LastName:      "Doe",
		Gender:        "F",
		Age:           34,
		Weight:        70.5,
		Height:        170,
		HealthHistory: "No allergies",
	}
}

func TestMaskForH(t *testing.T) {
	view := MaskFor(models.RoleH).Apply(sampleView())
	assert.Equal(t, "Jo", view.FirstName)
	assert.Equal(t, "Doe", view.LastName)
}

func TestMaskForRHidesNamesOnly(t *testing.T) {
	view := MaskFor(models.RoleR).Apply(sampleView())
	assert.Empty(t, view.FirstName)
	assert.Empty(t, view.LastName)
	// Sensitive fields stay visible: masking guards against the other role,
	// encryption guards against storage. The two are orthogonal.
	assert.Equal(t, "F", view.Gender)
	assert.Equal(t, 34, view.Age)
	assert.Equal(t, 70.5, view.Weight)
}

func TestMaskedViewOmitsNameKeysInJSON(t *testing.T) {
	view := MaskFor(models.RoleR).Apply(sampleView())
	payload, err := json.Marshal(view)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.NotContains(t, fields, "firstName")
	assert.NotContains(t, fields, "lastName")
	assert.Contains(t, fields, "age")
}

func TestMaskForUnknownRoleIsRestrictive(t *testing.T) {
	view := MaskFor(models.Role("X")).Apply(sampleView())
	assert.Empty(t, view.FirstName)
	assert.Empty(t, view.LastName)
}

func TestAuthorizeWrite(t *testing.T) {
	assert.True(t, AuthorizeWrite(models.RoleH))
	assert.False(t, AuthorizeWrite(models.RoleR))
	assert.False(t, AuthorizeWrite(models.Role("X")))
}

func TestNewSessionPinsMask(t *testing.T) {
	sess := NewSession("bob", models.RoleR)
	assert.Equal(t, "bob", sess.Username)
	assert.False(t, sess.Mask.ShowNames)
}
