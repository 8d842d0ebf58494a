package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_ValidCPF(t *testing.T) {
	doc, err := ParseDocument("111.444.777-35")
	require.NoError(t, err)

	assert.Equal(t, "11144477735", doc.Number)
	assert.Equal(t, DocumentCPF, doc.Type)
}

func TestParseDocument_ValidCPFWithoutFormatting(t *testing.T) {
	doc, err := ParseDocument("52998224725")
	require.NoError(t, err)

	assert.Equal(t, "52998224725", doc.Number)
	assert.Equal(t, DocumentCPF, doc.Type)
}

func TestParseDocument_CPFWrongCheckDigit(t *testing.T) {
	_, err := ParseDocument("111.444.777-34")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestParseDocument_CPFAllSameDigits(t *testing.T) {
	// Passes the check digit arithmetic but is a known invalid form.
	_, err := ParseDocument("111.111.111-11")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestParseDocument_ValidCNPJ(t *testing.T) {
	doc, err := ParseDocument("12.345.678/0001-95")
	require.NoError(t, err)

	assert.Equal(t, "12345678000195", doc.Number)
	assert.Equal(t, DocumentCNPJ, doc.Type)
}

func TestParseDocument_CNPJAllSameDigits(t *testing.T) {
	_, err := ParseDocument("11.111.111/1111-11")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestParseDocument_WrongLength(t *testing.T) {
	for _, value := range []string{"", "123", "123456789012", "123456789012345"} {
		_, err := ParseDocument(value)
		assert.ErrorIs(t, err, ErrInvalidDocument, "value %q", value)
	}
}
