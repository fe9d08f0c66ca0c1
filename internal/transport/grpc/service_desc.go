package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// BookingServiceName is the fully-qualified gRPC service name. Messages are
// google.protobuf.Struct records keyed by the booking JSON field names, so
// the service needs no generated code.
const BookingServiceName = "venuebook.v1.BookingService"

type BookingServiceServer interface {
	CheckForClashes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SaveBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TryBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListBookings(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	RemoveExpiredBookings(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CheckForClashes", newStruct, BookingServiceServer.CheckForClashes),
		unaryMethod("SaveBooking", newStruct, BookingServiceServer.SaveBooking),
		unaryMethod("TryBook", newStruct, BookingServiceServer.TryBook),
		unaryMethod("ListBookings", newEmpty, BookingServiceServer.ListBookings),
		unaryMethod("RemoveExpiredBookings", newEmpty, BookingServiceServer.RemoveExpiredBookings),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "venuebook/v1/bookings.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func newStruct() *structpb.Struct { return &structpb.Struct{} }
func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }

func unaryMethod[Req, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(BookingServiceServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + BookingServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingServiceServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// BookingServiceClient calls BookingService over an established connection.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) CheckForClashes(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, "CheckForClashes", req, opts...)
}

func (c *BookingServiceClient) SaveBooking(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, "SaveBooking", req, opts...)
}

func (c *BookingServiceClient) TryBook(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, "TryBook", req, opts...)
}

func (c *BookingServiceClient) ListBookings(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invokeStruct(ctx, "ListBookings", &emptypb.Empty{}, opts...)
}

func (c *BookingServiceClient) RemoveExpiredBookings(ctx context.Context, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "RemoveExpiredBookings", &emptypb.Empty{}, &emptypb.Empty{}, opts...)
}

func (c *BookingServiceClient) invokeStruct(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+BookingServiceName+"/"+method, in, out, opts...)
}
