package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// BookingServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct values with the HTTP body field names.
const BookingServiceName = "fishcharter.booking.v1.BookingService"

const (
	methodCheckAvailability = "/" + BookingServiceName + "/CheckAvailability"
	methodCreateReservation = "/" + BookingServiceName + "/CreateReservation"
	methodConfirmBooking    = "/" + BookingServiceName + "/ConfirmBooking"
)

type BookingServiceServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ConfirmBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: structHandler(methodCheckAvailability, BookingServiceServer.CheckAvailability)},
		{MethodName: "CreateReservation", Handler: structHandler(methodCreateReservation, BookingServiceServer.CreateReservation)},
		{MethodName: "ConfirmBooking", Handler: structHandler(methodConfirmBooking, BookingServiceServer.ConfirmBooking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fishcharter/booking/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

type structCall func(BookingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(fullMethod string, call structCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingService adapts the booking services to the gRPC API.
type BookingService struct {
	svc Services
}

func NewBookingService(svc Services) *BookingService {
	return &BookingService{svc: svc}
}

var _ BookingServiceServer = (*BookingService)(nil)

func (b *BookingService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body availabilityRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}

	res, err := b.svc.Availability.Check(ctx, body.Date, body.Time, body.Service)
	if err != nil {
		return nil, grpcError(err, fixed("Failed to check availability"))
	}
	return toStruct(res)
}

func (b *BookingService) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body reservationRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}

	res, err := b.svc.Reservations.Create(ctx, body.BookingData, body.Pricing)
	if err != nil {
		return nil, grpcError(err, fixed("Failed to create reservation"))
	}
	return toStruct(reservationResponse{
		Success:       true,
		ReservationID: res.ID,
		ExpiresAt:     res.ExpiresAt,
		Message:       res.Message(),
	})
}

func (b *BookingService) ConfirmBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var body confirmRequest
	if err := fromStruct(req, &body); err != nil {
		return nil, err
	}

	res, err := b.svc.Confirmations.Confirm(ctx, body.ReservationID, body.PaymentToken, body.Pricing)
	if err != nil {
		return nil, grpcError(err, prefixed("Booking confirmation failed: "))
	}
	return toStruct(confirmationResponse{
		Success:   true,
		BookingID: res.BookingID,
		PaymentID: res.PaymentID,
		Message:   "Booking confirmed successfully",
	})
}

func grpcError(err error, fallback func(error) string) error {
	if m, ok := classify(err); ok {
		return status.Error(m.code, m.message)
	}
	return status.Error(codes.Internal, fallback(err))
}

func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
