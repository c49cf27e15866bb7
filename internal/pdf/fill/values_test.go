package fill

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValues(t *testing.T) {
	values, err := DecodeValues(strings.NewReader(`{
		"6address1": "1800 F. Street NW",
		"plans": ["A", "B"],
		"zip": 20415,
		"rate": 1.50
	}`))
	require.NoError(t, err)

	assert.Equal(t, Values{
		"6address1": {"1800 F. Street NW"},
		"plans":     {"A", "B"},
		"zip":       {"20415"},
		"rate":      {"1.50"},
	}, values)
}

func TestDecodeValues_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"a": `,
		"array body":    `["a"]`,
		"null body":     `null`,
		"null value":    `{"a": null}`,
		"bool value":    `{"a": true}`,
		"object value":  `{"a": {"b": "c"}}`,
		"mixed list":    `{"a": ["b", 1]}`,
		"trailing data": `{"a": "b"} {"c": "d"}`,
		"empty":         ``,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeValues(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "", Value(nil).String())
	assert.Equal(t, "a", Value{"a", "b"}.String())
}
