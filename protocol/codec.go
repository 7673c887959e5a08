package protocol

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode encodes message bodies with Core Deterministic Encoding (RFC 8949
// §4.2), so equal messages produce equal frames.
var encMode cbor.EncMode

// decMode rejects duplicate map keys. Unknown fields are ignored so newer
// peers can add them.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
