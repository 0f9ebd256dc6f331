package apollopb

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName        = "apollo.CoreConnector"
	handshakeMethod    = "/" + serviceName + "/Handshake"
	reportStatusMethod = "/" + serviceName + "/ReportStatus"
)

// CoreConnectorServer is the interface the coordinator's RPC service
// implements: handshake authentication plus the bidirectional status
// stream. Shaped the way protoc-gen-go-grpc would emit it from
// proto/apollo.proto's `service CoreConnector`.
type CoreConnectorServer interface {
	Handshake(context.Context, *HandshakeRequest) (*HandshakeResponse, error)
	ReportStatus(CoreConnector_ReportStatusServer) error
}

// CoreConnector_ReportStatusServer is the server-side handle for the
// bidirectional ReportStatus stream.
type CoreConnector_ReportStatusServer interface {
	Send(*HeartbeatResponse) error
	Recv() (*StatusReport, error)
	grpc.ServerStream
}

type coreConnectorReportStatusServer struct {
	grpc.ServerStream
}

func (s *coreConnectorReportStatusServer) Send(m *HeartbeatResponse) error {
	return s.ServerStream.SendMsg(m)
}

func (s *coreConnectorReportStatusServer) Recv() (*StatusReport, error) {
	m := new(StatusReport)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func handshakeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HandshakeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoreConnectorServer).Handshake(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: handshakeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoreConnectorServer).Handshake(ctx, req.(*HandshakeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reportStatusHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(CoreConnectorServer).ReportStatus(&coreConnectorReportStatusServer{stream})
}

// ServiceDesc is registered against a *grpc.Server via
// grpc.Server.RegisterService, mirroring the _CoreConnector_serviceDesc a
// protoc-gen-go-grpc run would produce.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CoreConnectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Handshake", Handler: handshakeHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ReportStatus",
			Handler:       reportStatusHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "proto/apollo.proto",
}

// RegisterCoreConnectorServer registers srv on s.
func RegisterCoreConnectorServer(s *grpc.Server, srv CoreConnectorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// CoreConnectorClient is the client stub plugins use to dial the
// coordinator.
type CoreConnectorClient interface {
	Handshake(ctx context.Context, in *HandshakeRequest, opts ...grpc.CallOption) (*HandshakeResponse, error)
	ReportStatus(ctx context.Context, opts ...grpc.CallOption) (CoreConnector_ReportStatusClient, error)
}

type coreConnectorClient struct {
	cc grpc.ClientConnInterface
}

// NewCoreConnectorClient builds a client stub bound to cc.
func NewCoreConnectorClient(cc grpc.ClientConnInterface) CoreConnectorClient {
	return &coreConnectorClient{cc}
}

func (c *coreConnectorClient) Handshake(ctx context.Context, in *HandshakeRequest, opts ...grpc.CallOption) (*HandshakeResponse, error) {
	out := new(HandshakeResponse)
	if err := c.cc.Invoke(ctx, handshakeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CoreConnector_ReportStatusClient is the client-side handle for the
// bidirectional ReportStatus stream.
type CoreConnector_ReportStatusClient interface {
	Send(*StatusReport) error
	Recv() (*HeartbeatResponse, error)
	grpc.ClientStream
}

type coreConnectorReportStatusClient struct {
	grpc.ClientStream
}

func (c *coreConnectorClient) ReportStatus(ctx context.Context, opts ...grpc.CallOption) (CoreConnector_ReportStatusClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], reportStatusMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &coreConnectorReportStatusClient{stream}, nil
}

func (c *coreConnectorReportStatusClient) Send(m *StatusReport) error {
	return c.ClientStream.SendMsg(m)
}

func (c *coreConnectorReportStatusClient) Recv() (*HeartbeatResponse, error) {
	m := new(HeartbeatResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
