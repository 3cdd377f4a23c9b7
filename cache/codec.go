package cache

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts values to and from the textual blob kept in the backing
// store. Every value is round-tripped through exactly one codec; mixing
// codecs under the same namespace produces SerializationError on read.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// JSONCodec is the default codec. It keeps entries human readable, which
// matters when operators inspect keys directly on the store.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

// MsgpackCodec trades readability for smaller payloads. Useful for large
// collections where the JSON blob dominates network time.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (MsgpackCodec) Name() string                       { return "msgpack" }

// CodecByName resolves a configured codec name. Unknown names fall back to
// JSON so a typo in configuration degrades to the readable default.
func CodecByName(name string) Codec {
	if name == (MsgpackCodec{}).Name() {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}
