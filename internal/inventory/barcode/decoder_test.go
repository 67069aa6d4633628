package barcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ThreePR(t *testing.T) {
	label, ok := Decode("3PRABC123**LOT42**281231")
	require.True(t, ok)

	assert.Equal(t, "3PRABC123", label.ProductCode)
	assert.Equal(t, "LOT42", label.LotNumber)
	assert.Equal(t, "281231", label.ExpiryDate)
	assert.Equal(t, FormatThreePR, label.Format)
}

func TestDecode_ThreePRPartialSegments(t *testing.T) {
	label, ok := Decode("XX3PR0063**0011765983")
	require.True(t, ok)

	assert.Equal(t, "3PR0063", label.ProductCode)
	assert.Equal(t, "0011765983", label.LotNumber)
	assert.Empty(t, label.ExpiryDate)
}

func TestDecode_ThreePRWithoutCode(t *testing.T) {
	_, ok := Decode("3PR**LOT42**281231")
	assert.False(t, ok)
}

func TestDecode_GS1Bracketed(t *testing.T) {
	label, ok := Decode("(01)09501101530003(17)250731(10)AB-123")
	require.True(t, ok)

	assert.Equal(t, "09501101530003", label.ProductCode)
	assert.Equal(t, "31.07.2025", label.ExpiryDate)
	assert.Equal(t, "AB-123", label.LotNumber)
	assert.Equal(t, FormatGS1, label.Format)
}

func TestDecode_GS1BracketedAnyOrder(t *testing.T) {
	label, ok := Decode("(10)AB-123(01)09501101530003(17)250731")
	require.True(t, ok)

	assert.Equal(t, "09501101530003", label.ProductCode)
	assert.Equal(t, "AB-123", label.LotNumber)
	assert.Equal(t, "31.07.2025", label.ExpiryDate)
}

func TestDecode_GS1BracketedProductCodeOnly(t *testing.T) {
	label, ok := Decode("(01)12345678901234")
	require.True(t, ok)

	assert.Equal(t, "12345678901234", label.ProductCode)
	assert.Empty(t, label.LotNumber)
	assert.Empty(t, label.ExpiryDate)
}

func TestDecode_GS1FlatRoundTrip(t *testing.T) {
	label, ok := Decode("01095011015300031725073110ABC123")
	require.True(t, ok)

	assert.Equal(t, "09501101530003", label.ProductCode)
	assert.Equal(t, "31.07.2025", label.ExpiryDate)
	assert.Equal(t, "ABC123", label.LotNumber)
	assert.Equal(t, FormatGS1Flat, label.Format)
}

func TestDecode_GS1FlatLotBeforeExpiry(t *testing.T) {
	// The lot must stop at the next AI instead of swallowing its payload.
	label, ok := Decode("010950110153000310LOT917250731")
	require.True(t, ok)

	assert.Equal(t, "09501101530003", label.ProductCode)
	assert.Equal(t, "LOT9", label.LotNumber)
	assert.Equal(t, "31.07.2025", label.ExpiryDate)
}

func TestDecode_GS1FlatLotAtEnd(t *testing.T) {
	label, ok := Decode("010950110153000310BATCH77")
	require.True(t, ok)

	assert.Equal(t, "BATCH77", label.LotNumber)
	assert.Empty(t, label.ExpiryDate)
}

func TestDecode_GS1FlatStripsGroupSeparators(t *testing.T) {
	label, ok := Decode("0109501101530003\x1d1725073110ABC123")
	require.True(t, ok)

	assert.Equal(t, "09501101530003", label.ProductCode)
	assert.Equal(t, "31.07.2025", label.ExpiryDate)
	assert.Equal(t, "ABC123", label.LotNumber)
}

func TestDecode_Unrecognized(t *testing.T) {
	inputs := []string{
		"",
		"hello world",
		"01123",                // GTIN too short
		"(17)250731(10)AB-123", // bracketed without product code
		"9901095011015300031",  // does not start with 01
	}

	for _, raw := range inputs {
		_, ok := Decode(raw)
		assert.False(t, ok, "expected %q to be unrecognized", raw)
	}
}

func TestNormalizeProductCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"strips leading zeros", "000123", "123"},
		{"all zeros collapse to zero", "0000", "0"},
		{"non-numeric unchanged", "3PR0063", "3PR0063"},
		{"no leading zeros", "123", "123"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeProductCode(tt.code))
		})
	}
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"normalized form", "31.07.2025", time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)},
		{"iso form", "2025-07-31", time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)},
		{"raw yymmdd", "250731", time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiry(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseExpiry("not-a-date")
	assert.Error(t, err)

	_, err = ParseExpiry("")
	assert.Error(t, err)
}
