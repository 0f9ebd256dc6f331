// Package apollopb carries the Go bindings for proto/apollo.proto, the
// CoreConnector wire protocol plugins speak to the coordinator. The
// messages are plain structs moved over gRPC with the JSON codec in
// codec.go rather than protoc-generated protobuf wire types, since the
// protocol is loopback-only and gains nothing from the binary format; the
// service shape (unary Handshake, bidi-stream ReportStatus) mirrors what
// protoc-gen-go-grpc would emit from apollo.proto.
package apollopb

// HandshakeRequest is sent once per session to authenticate a plugin.
type HandshakeRequest struct {
	EntityID string `json:"entity_id"`
	AuthKey  string `json:"auth_key"`
}

// HandshakeResponse carries the freshly minted session token.
type HandshakeResponse struct {
	SessionToken string `json:"session_token"`
	Message      string `json:"message"`
}

// StatusReport is one frame of the inbound half of ReportStatus.
type StatusReport struct {
	SessionToken string `json:"session_token"`
	Status       string `json:"status"`
}

// HeartbeatResponse is one frame of the outbound half of ReportStatus.
type HeartbeatResponse struct {
	Status      string `json:"status"`
	CommandJSON string `json:"command_json"`
}
