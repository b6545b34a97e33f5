package wave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(out))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(out))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" composed (U+00E9) and decomposed (e + U+0301) must serialize the same.
	composed, err := MarshalCanonical("é")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("é")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"rate": 1.25e9})
	assert.Error(t, err)

	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestMarshalCanonical_NestedStructures(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"rows": []any{
			map[string]any{"pos": 1, "entries": []string{"idle_4000", ""}},
			map[string]any{"pos": 2, "blank": true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"rows":[{"entries":["idle_4000",""],"pos":1},{"blank":true,"pos":2}]}`,
		string(out))
}
