package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "docintake.v1.IntakeService"

	// OwnerMetadataKey carries the caller's owner id on every document call.
	OwnerMetadataKey = "x-owner-id"

	// RequestIDMetadataKey correlates a call across logs; echoed in the response header.
	RequestIDMetadataKey = "x-request-id"
)

// Method names of the intake service.
const (
	MethodExtractText     = "ExtractText"
	MethodProcessFile     = "ProcessFile"
	MethodSaveDocument    = "SaveDocument"
	MethodListDocuments   = "ListDocuments"
	MethodUpdateDocument  = "UpdateDocument"
	MethodDeleteDocument  = "DeleteDocument"
	MethodExportDocuments = "ExportDocuments"
)

// IntakeServer is the server API. Requests and responses are plain structs
// so clients need no generated code.
type IntakeServer interface {
	ExtractText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(IntakeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IntakeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(IntakeServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod returns the gRPC path of a method, e.g. "/docintake.v1.IntakeService/ExtractText".
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

var IntakeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IntakeServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodExtractText, IntakeServer.ExtractText),
		method(MethodProcessFile, IntakeServer.ProcessFile),
		method(MethodSaveDocument, IntakeServer.SaveDocument),
		method(MethodListDocuments, IntakeServer.ListDocuments),
		method(MethodUpdateDocument, IntakeServer.UpdateDocument),
		method(MethodDeleteDocument, IntakeServer.DeleteDocument),
		method(MethodExportDocuments, IntakeServer.ExportDocuments),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docintake/v1/intake.proto",
}

func RegisterIntakeServer(s grpc.ServiceRegistrar, srv IntakeServer) {
	s.RegisterService(&IntakeServiceDesc, srv)
}

// Client calls the intake service over cc.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
