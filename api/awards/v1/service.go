package awardsv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "awards.v1.AwardService"

// AwardServiceServer is implemented by the awards gRPC server.
type AwardServiceServer interface {
	ProcessCompletion(context.Context, *CompletionRequest) (*AwardResponse, error)
	ProcessManualCredit(context.Context, *ManualCreditRequest) (*AwardResponse, error)
	GetBalance(context.Context, *BalanceRequest) (*BalanceResponse, error)
	GetHeldBadges(context.Context, *HeldBadgesRequest) (*HeldBadgesResponse, error)
	GetCurrentRank(context.Context, *CurrentRankRequest) (*CurrentRankResponse, error)
	Reconcile(context.Context, *ReconcileRequest) (*ReconcileResponse, error)
	ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error)
	GetRankProgress(context.Context, *RankProgressRequest) (*RankProgressResponse, error)
	GetLeaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error)
	GetStreak(context.Context, *StreakRequest) (*StreakResponse, error)
	GetRankDistribution(context.Context, *RankDistributionRequest) (*RankDistributionResponse, error)
}

// UnimplementedAwardServiceServer answers every method with codes.Unimplemented.
type UnimplementedAwardServiceServer struct{}

func (UnimplementedAwardServiceServer) ProcessCompletion(context.Context, *CompletionRequest) (*AwardResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProcessCompletion not implemented")
}

func (UnimplementedAwardServiceServer) ProcessManualCredit(context.Context, *ManualCreditRequest) (*AwardResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProcessManualCredit not implemented")
}

func (UnimplementedAwardServiceServer) GetBalance(context.Context, *BalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedAwardServiceServer) GetHeldBadges(context.Context, *HeldBadgesRequest) (*HeldBadgesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHeldBadges not implemented")
}

func (UnimplementedAwardServiceServer) GetCurrentRank(context.Context, *CurrentRankRequest) (*CurrentRankResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCurrentRank not implemented")
}

func (UnimplementedAwardServiceServer) Reconcile(context.Context, *ReconcileRequest) (*ReconcileResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Reconcile not implemented")
}

func (UnimplementedAwardServiceServer) ListEntries(context.Context, *ListEntriesRequest) (*ListEntriesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEntries not implemented")
}

func (UnimplementedAwardServiceServer) GetRankProgress(context.Context, *RankProgressRequest) (*RankProgressResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRankProgress not implemented")
}

func (UnimplementedAwardServiceServer) GetLeaderboard(context.Context, *LeaderboardRequest) (*LeaderboardResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLeaderboard not implemented")
}

func (UnimplementedAwardServiceServer) GetStreak(context.Context, *StreakRequest) (*StreakResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStreak not implemented")
}

func (UnimplementedAwardServiceServer) GetRankDistribution(context.Context, *RankDistributionRequest) (*RankDistributionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRankDistribution not implemented")
}

// AwardServiceDesc describes the service for grpc.Server.RegisterService.
var AwardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AwardServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ProcessCompletion", AwardServiceServer.ProcessCompletion),
		unaryMethod("ProcessManualCredit", AwardServiceServer.ProcessManualCredit),
		unaryMethod("GetBalance", AwardServiceServer.GetBalance),
		unaryMethod("GetHeldBadges", AwardServiceServer.GetHeldBadges),
		unaryMethod("GetCurrentRank", AwardServiceServer.GetCurrentRank),
		unaryMethod("Reconcile", AwardServiceServer.Reconcile),
		unaryMethod("ListEntries", AwardServiceServer.ListEntries),
		unaryMethod("GetRankProgress", AwardServiceServer.GetRankProgress),
		unaryMethod("GetLeaderboard", AwardServiceServer.GetLeaderboard),
		unaryMethod("GetStreak", AwardServiceServer.GetStreak),
		unaryMethod("GetRankDistribution", AwardServiceServer.GetRankDistribution),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "awards/v1/awards",
}

// RegisterAwardServiceServer attaches server to registrar.
func RegisterAwardServiceServer(registrar grpc.ServiceRegistrar, server AwardServiceServer) {
	registrar.RegisterService(&AwardServiceDesc, server)
}

func unaryMethod[Request any, Response any](name string, call func(AwardServiceServer, context.Context, *Request) (*Response, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			request := new(Request)
			if err := decode(request); err != nil {
				return nil, err
			}
			awardServer := server.(AwardServiceServer)
			if interceptor == nil {
				return call(awardServer, ctx, request)
			}
			info := &grpc.UnaryServerInfo{Server: server, FullMethod: fullMethod}
			handler := func(ctx context.Context, request any) (any, error) {
				return call(awardServer, ctx, request.(*Request))
			}
			return interceptor(ctx, request, info, handler)
		},
	}
}
