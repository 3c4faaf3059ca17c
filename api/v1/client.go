package v1

import (
	"context"

	"google.golang.org/grpc"
)

// ResonanceClient is the typed client for the Resonance service. Every call
// uses the JSON codec.
type ResonanceClient struct {
	cc grpc.ClientConnInterface
}

// NewResonanceClient wraps a connection.
func NewResonanceClient(cc grpc.ClientConnInterface) *ResonanceClient {
	return &ResonanceClient{cc: cc}
}

func invoke[Req, Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func watch[Req, Res any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Res], error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Res]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *ResonanceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[RegisterRequest, AuthResponse](ctx, c.cc, Resonance_Register_FullMethodName, in, opts)
}

func (c *ResonanceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[LoginRequest, AuthResponse](ctx, c.cc, Resonance_Login_FullMethodName, in, opts)
}

func (c *ResonanceClient) GetProfile(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[UserRequest, Profile](ctx, c.cc, Resonance_GetProfile_FullMethodName, in, opts)
}

func (c *ResonanceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[UpdateProfileRequest, Profile](ctx, c.cc, Resonance_UpdateProfile_FullMethodName, in, opts)
}

func (c *ResonanceClient) PublishListening(ctx context.Context, in *PublishListeningRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[PublishListeningRequest, Empty](ctx, c.cc, Resonance_PublishListening_FullMethodName, in, opts)
}

func (c *ResonanceClient) StopListening(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty, Empty](ctx, c.cc, Resonance_StopListening_FullMethodName, in, opts)
}

func (c *ResonanceClient) CreateMatch(ctx context.Context, in *CreateMatchRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[CreateMatchRequest, MatchResponse](ctx, c.cc, Resonance_CreateMatch_FullMethodName, in, opts)
}

func (c *ResonanceClient) AcceptMatch(ctx context.Context, in *MatchIDRequest, opts ...grpc.CallOption) (*MatchResponse, error) {
	return invoke[MatchIDRequest, MatchResponse](ctx, c.cc, Resonance_AcceptMatch_FullMethodName, in, opts)
}

func (c *ResonanceClient) DeclineMatch(ctx context.Context, in *MatchIDRequest, opts ...grpc.CallOption) (*OutcomeResponse, error) {
	return invoke[MatchIDRequest, OutcomeResponse](ctx, c.cc, Resonance_DeclineMatch_FullMethodName, in, opts)
}

func (c *ResonanceClient) Unmatch(ctx context.Context, in *MatchIDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[MatchIDRequest, Empty](ctx, c.cc, Resonance_Unmatch_FullMethodName, in, opts)
}

func (c *ResonanceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[SendMessageRequest, Message](ctx, c.cc, Resonance_SendMessage_FullMethodName, in, opts)
}

func (c *ResonanceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	return invoke[GetHistoryRequest, GetHistoryResponse](ctx, c.cc, Resonance_GetHistory_FullMethodName, in, opts)
}

func (c *ResonanceClient) BlockUser(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[UserRequest, Empty](ctx, c.cc, Resonance_BlockUser_FullMethodName, in, opts)
}

func (c *ResonanceClient) UnblockUser(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[UserRequest, Empty](ctx, c.cc, Resonance_UnblockUser_FullMethodName, in, opts)
}

func (c *ResonanceClient) ListBlocked(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListBlockedResponse, error) {
	return invoke[Empty, ListBlockedResponse](ctx, c.cc, Resonance_ListBlocked_FullMethodName, in, opts)
}

func (c *ResonanceClient) ReportUser(ctx context.Context, in *ReportUserRequest, opts ...grpc.CallOption) (*ReportResponse, error) {
	return invoke[ReportUserRequest, ReportResponse](ctx, c.cc, Resonance_ReportUser_FullMethodName, in, opts)
}

func (c *ResonanceClient) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*ListNotificationsResponse, error) {
	return invoke[ListNotificationsRequest, ListNotificationsResponse](ctx, c.cc, Resonance_ListNotifications_FullMethodName, in, opts)
}

func (c *ResonanceClient) MarkNotificationRead(ctx context.Context, in *NotificationIDRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[NotificationIDRequest, Empty](ctx, c.cc, Resonance_MarkNotificationRead_FullMethodName, in, opts)
}

func (c *ResonanceClient) WatchCandidates(ctx context.Context, in *Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[CandidatesUpdate], error) {
	return watch[Empty, CandidatesUpdate](ctx, c.cc, &Resonance_ServiceDesc.Streams[0], Resonance_WatchCandidates_FullMethodName, in, opts)
}

func (c *ResonanceClient) WatchMatches(ctx context.Context, in *Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[MatchesUpdate], error) {
	return watch[Empty, MatchesUpdate](ctx, c.cc, &Resonance_ServiceDesc.Streams[1], Resonance_WatchMatches_FullMethodName, in, opts)
}

func (c *ResonanceClient) WatchMessages(ctx context.Context, in *WatchMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[MessagesUpdate], error) {
	return watch[WatchMessagesRequest, MessagesUpdate](ctx, c.cc, &Resonance_ServiceDesc.Streams[2], Resonance_WatchMessages_FullMethodName, in, opts)
}

func (c *ResonanceClient) WatchNotifications(ctx context.Context, in *Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Notification], error) {
	return watch[Empty, Notification](ctx, c.cc, &Resonance_ServiceDesc.Streams[3], Resonance_WatchNotifications_FullMethodName, in, opts)
}
