package transport

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pointconv/internal/dataset"
	"pointconv/internal/transform"
	"pointconv/internal/wire"
)

const (
	ServiceName    = "pointconv.v1.Conversion"
	convertMethod  = "/" + ServiceName + "/Convert"
	metadataMethod = "/" + ServiceName + "/Metadata"
)

// ConversionServer is the handler contract of pointconv.v1.Conversion.
type ConversionServer interface {
	Metadata(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Convert(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

var conversionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Metadata", Handler: metadataHandler},
		{MethodName: "Convert", Handler: convertHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pointconv/v1/conversion.proto",
}

func metadataHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConversionServer).Metadata(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: metadataMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ConversionServer).Metadata(ctx, req.(*emptypb.Empty))
	})
}

func convertHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConversionServer).Convert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: convertMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ConversionServer).Convert(ctx, req.(*wrapperspb.BytesValue))
	})
}

// Service serves conversions through a transform.Client, normally the
// in-process one.
type Service struct {
	conv transform.Client
}

func NewService(conv transform.Client) *Service { return &Service{conv: conv} }

func (s *Service) Metadata(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	md, err := s.conv.Metadata(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "metadata: %v", err)
	}
	return md, nil
}

func (s *Service) Convert(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	req, err := wire.Unmarshal(in.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode: %v", err)
	}
	out, err := s.conv.Convert(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := wire.Marshal(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return wrapperspb.Bytes(b), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, transform.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, dataset.ErrLocked):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
