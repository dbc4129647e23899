package awardsv1

import (
	"context"

	"google.golang.org/grpc"
)

// AwardServiceClient calls the awards service with the JSON codec.
type AwardServiceClient struct {
	conn grpc.ClientConnInterface
}

// NewAwardServiceClient wraps an established connection.
func NewAwardServiceClient(conn grpc.ClientConnInterface) *AwardServiceClient {
	return &AwardServiceClient{conn: conn}
}

func (client *AwardServiceClient) ProcessCompletion(ctx context.Context, request *CompletionRequest, options ...grpc.CallOption) (*AwardResponse, error) {
	return invoke[AwardResponse](ctx, client.conn, "ProcessCompletion", request, options)
}

func (client *AwardServiceClient) ProcessManualCredit(ctx context.Context, request *ManualCreditRequest, options ...grpc.CallOption) (*AwardResponse, error) {
	return invoke[AwardResponse](ctx, client.conn, "ProcessManualCredit", request, options)
}

func (client *AwardServiceClient) GetBalance(ctx context.Context, request *BalanceRequest, options ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, client.conn, "GetBalance", request, options)
}

func (client *AwardServiceClient) GetHeldBadges(ctx context.Context, request *HeldBadgesRequest, options ...grpc.CallOption) (*HeldBadgesResponse, error) {
	return invoke[HeldBadgesResponse](ctx, client.conn, "GetHeldBadges", request, options)
}

func (client *AwardServiceClient) GetCurrentRank(ctx context.Context, request *CurrentRankRequest, options ...grpc.CallOption) (*CurrentRankResponse, error) {
	return invoke[CurrentRankResponse](ctx, client.conn, "GetCurrentRank", request, options)
}

func (client *AwardServiceClient) Reconcile(ctx context.Context, request *ReconcileRequest, options ...grpc.CallOption) (*ReconcileResponse, error) {
	return invoke[ReconcileResponse](ctx, client.conn, "Reconcile", request, options)
}

func (client *AwardServiceClient) ListEntries(ctx context.Context, request *ListEntriesRequest, options ...grpc.CallOption) (*ListEntriesResponse, error) {
	return invoke[ListEntriesResponse](ctx, client.conn, "ListEntries", request, options)
}

func (client *AwardServiceClient) GetRankProgress(ctx context.Context, request *RankProgressRequest, options ...grpc.CallOption) (*RankProgressResponse, error) {
	return invoke[RankProgressResponse](ctx, client.conn, "GetRankProgress", request, options)
}

func (client *AwardServiceClient) GetLeaderboard(ctx context.Context, request *LeaderboardRequest, options ...grpc.CallOption) (*LeaderboardResponse, error) {
	return invoke[LeaderboardResponse](ctx, client.conn, "GetLeaderboard", request, options)
}

func (client *AwardServiceClient) GetStreak(ctx context.Context, request *StreakRequest, options ...grpc.CallOption) (*StreakResponse, error) {
	return invoke[StreakResponse](ctx, client.conn, "GetStreak", request, options)
}

func (client *AwardServiceClient) GetRankDistribution(ctx context.Context, request *RankDistributionRequest, options ...grpc.CallOption) (*RankDistributionResponse, error) {
	return invoke[RankDistributionResponse](ctx, client.conn, "GetRankDistribution", request, options)
}

func invoke[Response any](ctx context.Context, conn grpc.ClientConnInterface, method string, request any, options []grpc.CallOption) (*Response, error) {
	response := new(Response)
	options = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, options...)
	if err := conn.Invoke(ctx, "/"+ServiceName+"/"+method, request, response, options...); err != nil {
		return nil, err
	}
	return response, nil
}
