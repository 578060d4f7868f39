package codec

import (
	"bytes"
	"testing"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *types.Index {
	idx := types.NewIndex()
	idx.Append("ce_text", types.CandidatePath{
		Path:     "@Acme/ce_text.html.twig",
		Package:  "Acme",
		Pathname: "/vendor/acme/Resources/views/ce_text.html.twig",
	})
	idx.Append("ce_text", types.CandidatePath{
		Path:       "customtheme/ce_text.html.twig",
		Pathname:   "/templates/customtheme/ce_text.html.twig",
		Deprecated: true,
	})
	idx.Append("mod_html", types.CandidatePath{Path: "mod_html.html.twig", Pathname: "/templates/mod_html.html.twig"})
	return idx
}

func TestEncodeDecodeIndex(t *testing.T) {
	idx := sampleIndex()

	data, err := EncodeIndex(idx)
	require.NoError(t, err)

	decoded, err := DecodeIndex(data)
	require.NoError(t, err)
	assert.Equal(t, idx, decoded)
}

func TestEncodeIsDeterministic(t *testing.T) {
	first, err := EncodeIndex(sampleIndex())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := EncodeIndex(sampleIndex())
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, again))
	}
}

func TestEncodeEmptyIndex(t *testing.T) {
	data, err := EncodeIndex(types.NewIndex())
	require.NoError(t, err)

	decoded, err := DecodeIndex(data)
	require.NoError(t, err)
	assert.Zero(t, decoded.Len())
	assert.NotNil(t, decoded.Entries)
}

func TestEncodeNilIndex(t *testing.T) {
	_, err := EncodeIndex(nil)
	assert.Error(t, err)
}

func TestDecodeRejectsInvalidPayloads(t *testing.T) {
	valid, err := EncodeIndex(sampleIndex())
	require.NoError(t, err)

	notAnIndex, err := Marshal([]string{"ce_text"})
	require.NoError(t, err)

	inconsistent, err := Marshal(&types.Index{
		Names:   []string{"a", "b"},
		Entries: map[string]*types.TemplateEntry{"a": {Paths: []types.CandidatePath{{Path: "a"}}}},
	})
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":        nil,
		"garbage":      []byte("not cbor at all"),
		"truncated":    valid[:len(valid)/2],
		"array":        notAnIndex,
		"inconsistent": inconsistent,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeIndex(data)
			assert.Error(t, err)
		})
	}
}
