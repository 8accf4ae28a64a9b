package pipev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "netpipe.v1.PipeService"

const (
	PipeService_Open_FullMethodName       = "/netpipe.v1.PipeService/Open"
	PipeService_Send_FullMethodName       = "/netpipe.v1.PipeService/Send"
	PipeService_Close_FullMethodName      = "/netpipe.v1.PipeService/Close"
	PipeService_Attach_FullMethodName     = "/netpipe.v1.PipeService/Attach"
	PipeService_Detach_FullMethodName     = "/netpipe.v1.PipeService/Detach"
	PipeService_Precheck_FullMethodName   = "/netpipe.v1.PipeService/Precheck"
	PipeService_Invalidate_FullMethodName = "/netpipe.v1.PipeService/Invalidate"
	PipeService_Validate_FullMethodName   = "/netpipe.v1.PipeService/Validate"
	PipeService_Stat_FullMethodName       = "/netpipe.v1.PipeService/Stat"
)

// PipeServiceClient is the client API for PipeService.
type PipeServiceClient interface {
	Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenResponse, error)
	Send(ctx context.Context, in *SendRequest, opts ...grpc.CallOption) (*SendResponse, error)
	Close(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*CloseResponse, error)
	Attach(ctx context.Context, in *AttachRequest, opts ...grpc.CallOption) (*AttachResponse, error)
	Detach(ctx context.Context, in *DetachRequest, opts ...grpc.CallOption) (*DetachResponse, error)
	Precheck(ctx context.Context, in *PrecheckRequest, opts ...grpc.CallOption) (*PrecheckResponse, error)
	Invalidate(ctx context.Context, in *InvalidateRequest, opts ...grpc.CallOption) (*InvalidateResponse, error)
	Validate(ctx context.Context, in *ValidateRequest, opts ...grpc.CallOption) (*ValidateResponse, error)
	Stat(ctx context.Context, in *StatRequest, opts ...grpc.CallOption) (*StatResponse, error)
}

type pipeServiceClient struct{ cc grpc.ClientConnInterface }

func NewPipeServiceClient(cc grpc.ClientConnInterface) PipeServiceClient {
	return &pipeServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pipeServiceClient) Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c.cc, PipeService_Open_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Send(ctx context.Context, in *SendRequest, opts ...grpc.CallOption) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c.cc, PipeService_Send_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Close(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*CloseResponse, error) {
	return invoke[CloseResponse](ctx, c.cc, PipeService_Close_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Attach(ctx context.Context, in *AttachRequest, opts ...grpc.CallOption) (*AttachResponse, error) {
	return invoke[AttachResponse](ctx, c.cc, PipeService_Attach_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Detach(ctx context.Context, in *DetachRequest, opts ...grpc.CallOption) (*DetachResponse, error) {
	return invoke[DetachResponse](ctx, c.cc, PipeService_Detach_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Precheck(ctx context.Context, in *PrecheckRequest, opts ...grpc.CallOption) (*PrecheckResponse, error) {
	return invoke[PrecheckResponse](ctx, c.cc, PipeService_Precheck_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Invalidate(ctx context.Context, in *InvalidateRequest, opts ...grpc.CallOption) (*InvalidateResponse, error) {
	return invoke[InvalidateResponse](ctx, c.cc, PipeService_Invalidate_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Validate(ctx context.Context, in *ValidateRequest, opts ...grpc.CallOption) (*ValidateResponse, error) {
	return invoke[ValidateResponse](ctx, c.cc, PipeService_Validate_FullMethodName, in, opts)
}

func (c *pipeServiceClient) Stat(ctx context.Context, in *StatRequest, opts ...grpc.CallOption) (*StatResponse, error) {
	return invoke[StatResponse](ctx, c.cc, PipeService_Stat_FullMethodName, in, opts)
}

// PipeServiceServer is the server API for PipeService. Implementations
// must embed UnimplementedPipeServiceServer.
type PipeServiceServer interface {
	Open(context.Context, *OpenRequest) (*OpenResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Close(context.Context, *CloseRequest) (*CloseResponse, error)
	Attach(context.Context, *AttachRequest) (*AttachResponse, error)
	Detach(context.Context, *DetachRequest) (*DetachResponse, error)
	Precheck(context.Context, *PrecheckRequest) (*PrecheckResponse, error)
	Invalidate(context.Context, *InvalidateRequest) (*InvalidateResponse, error)
	Validate(context.Context, *ValidateRequest) (*ValidateResponse, error)
	Stat(context.Context, *StatRequest) (*StatResponse, error)
	mustEmbedUnimplementedPipeServiceServer()
}

type UnimplementedPipeServiceServer struct{}

func (UnimplementedPipeServiceServer) Open(context.Context, *OpenRequest) (*OpenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Open not implemented")
}
func (UnimplementedPipeServiceServer) Send(context.Context, *SendRequest) (*SendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Send not implemented")
}
func (UnimplementedPipeServiceServer) Close(context.Context, *CloseRequest) (*CloseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Close not implemented")
}
func (UnimplementedPipeServiceServer) Attach(context.Context, *AttachRequest) (*AttachResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Attach not implemented")
}
func (UnimplementedPipeServiceServer) Detach(context.Context, *DetachRequest) (*DetachResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Detach not implemented")
}
func (UnimplementedPipeServiceServer) Precheck(context.Context, *PrecheckRequest) (*PrecheckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Precheck not implemented")
}
func (UnimplementedPipeServiceServer) Invalidate(context.Context, *InvalidateRequest) (*InvalidateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Invalidate not implemented")
}
func (UnimplementedPipeServiceServer) Validate(context.Context, *ValidateRequest) (*ValidateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Validate not implemented")
}
func (UnimplementedPipeServiceServer) Stat(context.Context, *StatRequest) (*StatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Stat not implemented")
}
func (UnimplementedPipeServiceServer) mustEmbedUnimplementedPipeServiceServer() {}

func unary[Req any, Resp any](name, full string, call func(PipeServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PipeServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PipeServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// PipeService_ServiceDesc is the grpc.ServiceDesc for PipeService.
var PipeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Open", PipeService_Open_FullMethodName, PipeServiceServer.Open),
		unary("Send", PipeService_Send_FullMethodName, PipeServiceServer.Send),
		unary("Close", PipeService_Close_FullMethodName, PipeServiceServer.Close),
		unary("Attach", PipeService_Attach_FullMethodName, PipeServiceServer.Attach),
		unary("Detach", PipeService_Detach_FullMethodName, PipeServiceServer.Detach),
		unary("Precheck", PipeService_Precheck_FullMethodName, PipeServiceServer.Precheck),
		unary("Invalidate", PipeService_Invalidate_FullMethodName, PipeServiceServer.Invalidate),
		unary("Validate", PipeService_Validate_FullMethodName, PipeServiceServer.Validate),
		unary("Stat", PipeService_Stat_FullMethodName, PipeServiceServer.Stat),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netpipe.v1",
}

func RegisterPipeServiceServer(s grpc.ServiceRegistrar, srv PipeServiceServer) {
	s.RegisterService(&PipeService_ServiceDesc, srv)
}
