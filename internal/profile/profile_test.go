package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := Default()

	atb, err := reg.ByRetailer("atb")
	require.NoError(t, err)
	assert.Equal(t, ModeFreeText, atb.Mode)
	assert.NotEmpty(t, atb.ProductSelectors)
	assert.NotEmpty(t, atb.CookieFile)

	silpo, err := reg.ByRetailer("silpo")
	require.NoError(t, err)
	assert.Equal(t, ModeStructured, silpo.Mode)
	assert.NotEmpty(t, silpo.Structured.Name, "structured mode needs a name selector")
	assert.NotEmpty(t, silpo.Structured.Price)
}

func TestByRetailerNormalizesTag(t *testing.T) {
	reg := Default()

	p, err := reg.ByRetailer("  ATB ")
	require.NoError(t, err)
	assert.Equal(t, "atb", p.Retailer)
}

func TestByRetailerUnknown(t *testing.T) {
	_, err := Default().ByRetailer("hypermart")
	assert.ErrorIs(t, err, ErrUnknownRetailer)
}

func TestByListFileDispatch(t *testing.T) {
	reg := Default()

	p, err := reg.ByListFile("silpo.txt")
	require.NoError(t, err)
	assert.Equal(t, "silpo", p.Retailer)

	_, err = reg.ByListFile("unknown.txt")
	assert.ErrorIs(t, err, ErrUnknownRetailer)
}

func TestAllKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry(
		Profile{Retailer: "b", ListFile: "b.txt"},
		Profile{Retailer: "a", ListFile: "a.txt"},
	)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Retailer)
	assert.Equal(t, "a", all[1].Retailer)
}
