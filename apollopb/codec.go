package apollopb

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec (and, via Name(), the server/client
// ForceCodec option) so that apollopb messages travel as plain JSON frames
// instead of requiring a protoc-generated protobuf runtime.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
func (jsonCodec) Name() string { return "json" }

// Codec is the shared codec both the server and client must use: cmd/apollod
// installs it with grpc.ForceServerCodec, and clients select it with
// grpc.ForceCodec or the "json" content subtype.
var Codec encoding.Codec = jsonCodec{}

func init() {
	encoding.RegisterCodec(Codec)
}
