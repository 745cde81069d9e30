package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

func TestLookup(t *testing.T) {
	a, err := Lookup("caiso")
	require.NoError(t, err)
	assert.Equal(t, "CAISO", a.Code)
	assert.Equal(t, FamilyCAISO, a.Family)
	assert.True(t, a.Supports(models.DataTypeLMP))
	assert.True(t, a.Supports(models.DataTypeLoad))

	_, err = Lookup("NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownAuthority))
}

func TestLookupReturnsCopy(t *testing.T) {
	a, err := Lookup("PJM")
	require.NoError(t, err)
	a.DataTypes[0] = "mutated"

	b, err := Lookup("PJM")
	require.NoError(t, err)
	assert.Equal(t, models.DataTypeLMP, b.DataTypes[0])
}

func TestListAuthorities(t *testing.T) {
	lmp := ListAuthorities(models.DataTypeLMP)
	codes := make([]string, 0, len(lmp))
	for _, a := range lmp {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"CAISO", "ERCOT", "ISONE", "MISO", "NYISO", "PJM"}, codes)

	load := ListAuthorities(models.DataTypeLoad)
	for _, a := range load {
		assert.True(t, a.Supports(models.DataTypeLoad), a.Code)
	}
	for i := 1; i < len(load); i++ {
		assert.Less(t, load[i-1].Code, load[i].Code)
	}

	assert.Len(t, ListAuthorities(""), len(Codes()))
}

func TestForeignEIAAuthoritiesHaveNoLoad(t *testing.T) {
	for _, code := range []string{"IESO", "BCTC", "MHEB", "AESO", "HQT", "NBSO", "CFE", "SPC"} {
		a, err := Lookup(code)
		require.NoError(t, err, code)
		assert.NotEqual(t, ClassUS, a.Class, code)
		assert.False(t, a.Supports(models.DataTypeLoad), code)
	}
}

func TestEIADescriptors(t *testing.T) {
	delayed, err := Lookup("GVL")
	require.NoError(t, err)
	assert.Greater(t, delayed.ForecastLead.Hours(), 0.0)

	prompt, err := Lookup("TVA")
	require.NoError(t, err)
	assert.Zero(t, prompt.ForecastLead)
	assert.Equal(t, 2, prompt.Concurrency())

	suffixed, err := Lookup("GRIF-EIA")
	require.NoError(t, err)
	assert.Equal(t, "GRIF", suffixed.Upstream())
	assert.Empty(t, suffixed.DataTypes)
}

func TestByFamily(t *testing.T) {
	sveri := ByFamily(FamilySVERI)
	assert.Len(t, sveri, 10)
	for _, a := range sveri {
		assert.Equal(t, FamilySVERI, a.Family)
	}
}
