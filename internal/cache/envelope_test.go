package cache

import (
	"testing"
	"time"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *types.Index {
	idx := types.NewIndex()
	idx.Append("ce_text", types.CandidatePath{Path: "@Acme/ce_text.html.twig", Package: "Acme", Pathname: "/vendor/acme/ce_text.html.twig"})
	idx.Append("ce_text", types.CandidatePath{Path: "ce_text.html.twig", Pathname: "/templates/ce_text.html.twig"})
	idx.Append("mod_list", types.CandidatePath{Path: "sub/mod_list.html.twig", Pathname: "/templates/sub/mod_list.html.twig", Deprecated: true})
	return idx
}

func TestEnvelope(t *testing.T) {
	now := time.Unix(1700000000, 0)

	for _, compress := range []bool{false, true} {
		data, err := sealIndex(sampleIndex(), compress, time.Time{})
		require.NoError(t, err)

		idx, err := openIndex(data, now)
		require.NoError(t, err)
		assert.Equal(t, sampleIndex(), idx)
	}
}

func TestEnvelopeExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	data, err := sealIndex(sampleIndex(), true, now.Add(time.Minute))
	require.NoError(t, err)

	_, err = openIndex(data, now)
	assert.NoError(t, err)

	_, err = openIndex(data, now.Add(time.Minute))
	assert.ErrorIs(t, err, errExpired)
}

func TestEnvelopeCorruption(t *testing.T) {
	now := time.Now()
	valid, err := sealIndex(sampleIndex(), false, time.Time{})
	require.NoError(t, err)

	flipped := append([]byte(nil), valid...)
	flipped[len(flipped)-1] ^= 0xff

	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'

	compressed, err := sealIndex(sampleIndex(), true, time.Time{})
	require.NoError(t, err)
	truncated := compressed[:envelopeHeaderSize+2]

	tests := map[string][]byte{
		"empty":           nil,
		"short":           valid[:envelopeHeaderSize-1],
		"bad magic":       badMagic,
		"checksum":        flipped,
		"truncated zstd":  truncated,
		"foreign payload": []byte("a:2:{s:7:\"ce_text\";}"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := openIndex(data, now)
			assert.ErrorIs(t, err, errCorrupted)
		})
	}
}
