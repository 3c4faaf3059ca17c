package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "resonance.v1.Resonance"

// Full method names, as seen by interceptors.
const (
	Resonance_Register_FullMethodName             = "/resonance.v1.Resonance/Register"
	Resonance_Login_FullMethodName                = "/resonance.v1.Resonance/Login"
	Resonance_GetProfile_FullMethodName           = "/resonance.v1.Resonance/GetProfile"
	Resonance_UpdateProfile_FullMethodName        = "/resonance.v1.Resonance/UpdateProfile"
	Resonance_PublishListening_FullMethodName     = "/resonance.v1.Resonance/PublishListening"
	Resonance_StopListening_FullMethodName        = "/resonance.v1.Resonance/StopListening"
	Resonance_CreateMatch_FullMethodName          = "/resonance.v1.Resonance/CreateMatch"
	Resonance_AcceptMatch_FullMethodName          = "/resonance.v1.Resonance/AcceptMatch"
	Resonance_DeclineMatch_FullMethodName         = "/resonance.v1.Resonance/DeclineMatch"
	Resonance_Unmatch_FullMethodName              = "/resonance.v1.Resonance/Unmatch"
	Resonance_SendMessage_FullMethodName          = "/resonance.v1.Resonance/SendMessage"
	Resonance_GetHistory_FullMethodName           = "/resonance.v1.Resonance/GetHistory"
	Resonance_BlockUser_FullMethodName            = "/resonance.v1.Resonance/BlockUser"
	Resonance_UnblockUser_FullMethodName          = "/resonance.v1.Resonance/UnblockUser"
	Resonance_ListBlocked_FullMethodName          = "/resonance.v1.Resonance/ListBlocked"
	Resonance_ReportUser_FullMethodName           = "/resonance.v1.Resonance/ReportUser"
	Resonance_ListNotifications_FullMethodName    = "/resonance.v1.Resonance/ListNotifications"
	Resonance_MarkNotificationRead_FullMethodName = "/resonance.v1.Resonance/MarkNotificationRead"
	Resonance_WatchCandidates_FullMethodName      = "/resonance.v1.Resonance/WatchCandidates"
	Resonance_WatchMatches_FullMethodName         = "/resonance.v1.Resonance/WatchMatches"
	Resonance_WatchMessages_FullMethodName        = "/resonance.v1.Resonance/WatchMessages"
	Resonance_WatchNotifications_FullMethodName   = "/resonance.v1.Resonance/WatchNotifications"
)

// ResonanceServer is the server API for the Resonance service.
type ResonanceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	GetProfile(context.Context, *UserRequest) (*Profile, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*Profile, error)
	PublishListening(context.Context, *PublishListeningRequest) (*Empty, error)
	StopListening(context.Context, *Empty) (*Empty, error)
	CreateMatch(context.Context, *CreateMatchRequest) (*MatchResponse, error)
	AcceptMatch(context.Context, *MatchIDRequest) (*MatchResponse, error)
	DeclineMatch(context.Context, *MatchIDRequest) (*OutcomeResponse, error)
	Unmatch(context.Context, *MatchIDRequest) (*Empty, error)
	SendMessage(context.Context, *SendMessageRequest) (*Message, error)
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	BlockUser(context.Context, *UserRequest) (*Empty, error)
	UnblockUser(context.Context, *UserRequest) (*Empty, error)
	ListBlocked(context.Context, *Empty) (*ListBlockedResponse, error)
	ReportUser(context.Context, *ReportUserRequest) (*ReportResponse, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	MarkNotificationRead(context.Context, *NotificationIDRequest) (*Empty, error)
	WatchCandidates(*Empty, grpc.ServerStreamingServer[CandidatesUpdate]) error
	WatchMatches(*Empty, grpc.ServerStreamingServer[MatchesUpdate]) error
	WatchMessages(*WatchMessagesRequest, grpc.ServerStreamingServer[MessagesUpdate]) error
	WatchNotifications(*Empty, grpc.ServerStreamingServer[Notification]) error
}

// UnimplementedResonanceServer can be embedded to have forward compatible
// implementations.
type UnimplementedResonanceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedResonanceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, unimplemented("Register")
}
func (UnimplementedResonanceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedResonanceServer) GetProfile(context.Context, *UserRequest) (*Profile, error) {
	return nil, unimplemented("GetProfile")
}
func (UnimplementedResonanceServer) UpdateProfile(context.Context, *UpdateProfileRequest) (*Profile, error) {
	return nil, unimplemented("UpdateProfile")
}
func (UnimplementedResonanceServer) PublishListening(context.Context, *PublishListeningRequest) (*Empty, error) {
	return nil, unimplemented("PublishListening")
}
func (UnimplementedResonanceServer) StopListening(context.Context, *Empty) (*Empty, error) {
	return nil, unimplemented("StopListening")
}
func (UnimplementedResonanceServer) CreateMatch(context.Context, *CreateMatchRequest) (*MatchResponse, error) {
	return nil, unimplemented("CreateMatch")
}
func (UnimplementedResonanceServer) AcceptMatch(context.Context, *MatchIDRequest) (*MatchResponse, error) {
	return nil, unimplemented("AcceptMatch")
}
func (UnimplementedResonanceServer) DeclineMatch(context.Context, *MatchIDRequest) (*OutcomeResponse, error) {
	return nil, unimplemented("DeclineMatch")
}
func (UnimplementedResonanceServer) Unmatch(context.Context, *MatchIDRequest) (*Empty, error) {
	return nil, unimplemented("Unmatch")
}
func (UnimplementedResonanceServer) SendMessage(context.Context, *SendMessageRequest) (*Message, error) {
	return nil, unimplemented("SendMessage")
}
func (UnimplementedResonanceServer) GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error) {
	return nil, unimplemented("GetHistory")
}
func (UnimplementedResonanceServer) BlockUser(context.Context, *UserRequest) (*Empty, error) {
	return nil, unimplemented("BlockUser")
}
func (UnimplementedResonanceServer) UnblockUser(context.Context, *UserRequest) (*Empty, error) {
	return nil, unimplemented("UnblockUser")
}
func (UnimplementedResonanceServer) ListBlocked(context.Context, *Empty) (*ListBlockedResponse, error) {
	return nil, unimplemented("ListBlocked")
}
func (UnimplementedResonanceServer) ReportUser(context.Context, *ReportUserRequest) (*ReportResponse, error) {
	return nil, unimplemented("ReportUser")
}
func (UnimplementedResonanceServer) ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	return nil, unimplemented("ListNotifications")
}
func (UnimplementedResonanceServer) MarkNotificationRead(context.Context, *NotificationIDRequest) (*Empty, error) {
	return nil, unimplemented("MarkNotificationRead")
}
func (UnimplementedResonanceServer) WatchCandidates(*Empty, grpc.ServerStreamingServer[CandidatesUpdate]) error {
	return unimplemented("WatchCandidates")
}
func (UnimplementedResonanceServer) WatchMatches(*Empty, grpc.ServerStreamingServer[MatchesUpdate]) error {
	return unimplemented("WatchMatches")
}
func (UnimplementedResonanceServer) WatchMessages(*WatchMessagesRequest, grpc.ServerStreamingServer[MessagesUpdate]) error {
	return unimplemented("WatchMessages")
}
func (UnimplementedResonanceServer) WatchNotifications(*Empty, grpc.ServerStreamingServer[Notification]) error {
	return unimplemented("WatchNotifications")
}

// RegisterResonanceServer registers srv on s.
func RegisterResonanceServer(s grpc.ServiceRegistrar, srv ResonanceServer) {
	s.RegisterService(&Resonance_ServiceDesc, srv)
}

// unary builds the method descriptor for a unary call.
func unary[Req, Res any](name, fullMethod string, call func(ResonanceServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ResonanceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ResonanceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serverStream builds the stream descriptor for a server-streaming call.
func serverStream[Req, Res any](name string, call func(ResonanceServer, *Req, grpc.ServerStreamingServer[Res]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(ResonanceServer), in, &grpc.GenericServerStream[Req, Res]{ServerStream: stream})
		},
	}
}

// Resonance_ServiceDesc is the grpc.ServiceDesc for the Resonance service.
var Resonance_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResonanceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", Resonance_Register_FullMethodName, ResonanceServer.Register),
		unary("Login", Resonance_Login_FullMethodName, ResonanceServer.Login),
		unary("GetProfile", Resonance_GetProfile_FullMethodName, ResonanceServer.GetProfile),
		unary("UpdateProfile", Resonance_UpdateProfile_FullMethodName, ResonanceServer.UpdateProfile),
		unary("PublishListening", Resonance_PublishListening_FullMethodName, ResonanceServer.PublishListening),
		unary("StopListening", Resonance_StopListening_FullMethodName, ResonanceServer.StopListening),
		unary("CreateMatch", Resonance_CreateMatch_FullMethodName, ResonanceServer.CreateMatch),
		unary("AcceptMatch", Resonance_AcceptMatch_FullMethodName, ResonanceServer.AcceptMatch),
		unary("DeclineMatch", Resonance_DeclineMatch_FullMethodName, ResonanceServer.DeclineMatch),
		unary("Unmatch", Resonance_Unmatch_FullMethodName, ResonanceServer.Unmatch),
		unary("SendMessage", Resonance_SendMessage_FullMethodName, ResonanceServer.SendMessage),
		unary("GetHistory", Resonance_GetHistory_FullMethodName, ResonanceServer.GetHistory),
		unary("BlockUser", Resonance_BlockUser_FullMethodName, ResonanceServer.BlockUser),
		unary("UnblockUser", Resonance_UnblockUser_FullMethodName, ResonanceServer.UnblockUser),
		unary("ListBlocked", Resonance_ListBlocked_FullMethodName, ResonanceServer.ListBlocked),
		unary("ReportUser", Resonance_ReportUser_FullMethodName, ResonanceServer.ReportUser),
		unary("ListNotifications", Resonance_ListNotifications_FullMethodName, ResonanceServer.ListNotifications),
		unary("MarkNotificationRead", Resonance_MarkNotificationRead_FullMethodName, ResonanceServer.MarkNotificationRead),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchCandidates", ResonanceServer.WatchCandidates),
		serverStream("WatchMatches", ResonanceServer.WatchMatches),
		serverStream("WatchMessages", ResonanceServer.WatchMessages),
		serverStream("WatchNotifications", ResonanceServer.WatchNotifications),
	},
	Metadata: "resonance/v1/resonance.json",
}
