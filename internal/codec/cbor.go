// Package codec encodes template indexes for the persisted cache.
package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// encMode uses Core Deterministic Encoding: the same index always produces
// identical bytes, so concurrent writers store interchangeable values.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeIndex serializes an index.
func EncodeIndex(idx *types.Index) ([]byte, error) {
	if idx == nil {
		return nil, fmt.Errorf("codec: nil index")
	}
	return Marshal(idx)
}

// DecodeIndex deserializes an index and rejects structurally invalid values.
func DecodeIndex(data []byte) (*types.Index, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("codec: empty index payload")
	}
	// A valid payload is always a CBOR map (major type 5).
	if data[0]>>5 != 5 {
		return nil, fmt.Errorf("codec: index payload is not a map")
	}
	idx := &types.Index{}
	if err := Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("codec: decoding index: %w", err)
	}
	if idx.Names == nil {
		idx.Names = make([]string, 0)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*types.TemplateEntry)
	}
	if !idx.Valid() {
		return nil, fmt.Errorf("codec: index payload is structurally invalid")
	}
	return idx, nil
}
