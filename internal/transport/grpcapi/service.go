// Package grpcapi exposes pulls over gRPC. Messages are
// google.protobuf.Struct so the service needs no generated code.
package grpcapi

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/tarot-house/internal/catalog"
	"github.com/xtding233/tarot-house/internal/ledger"
	"github.com/xtding233/tarot-house/internal/pull"
)

const ServiceName = "tarothouse.v1.TarotHouse"

// TarotHouseServer is the gRPC service contract.
type TarotHouseServer interface {
	Pull(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPools(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(TarotHouseServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TarotHouseServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TarotHouseServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TarotHouseServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Pull", Handler: unaryHandler("Pull", TarotHouseServer.Pull)},
		{MethodName: "GetBalance", Handler: unaryHandler("GetBalance", TarotHouseServer.GetBalance)},
		{MethodName: "ListPools", Handler: unaryHandler("ListPools", TarotHouseServer.ListPools)},
	},
	Metadata: "tarothouse/v1/tarot_house.proto",
}

// RegisterTarotHouseServer registers srv on s.
func RegisterTarotHouseServer(s grpc.ServiceRegistrar, srv TarotHouseServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Puller runs pull requests.
type Puller interface {
	Pull(ctx context.Context, accountID string, req pull.Request) (*pull.Result, error)
}

// Balances reads account balances.
type Balances interface {
	Balance(ctx context.Context, accountID string) (ledger.Balance, error)
}

// Service implements TarotHouseServer.
type Service struct {
	pools    *catalog.Source
	puller   Puller
	balances Balances
	logger   *slog.Logger
}

var _ TarotHouseServer = (*Service)(nil)

// NewService creates the gRPC service.
func NewService(logger *slog.Logger, pools *catalog.Source, puller Puller, balances Balances) *Service {
	return &Service{
		pools:    pools,
		puller:   puller,
		balances: balances,
		logger:   logger.With("component", "grpc_service"),
	}
}

// Pull expects {account_id, pool_id, mode}.
func (s *Service) Pull(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	accountID := in.GetFields()["account_id"].GetStringValue()
	if accountID == "" {
		return nil, status.Error(codes.InvalidArgument, "account_id is required")
	}
	mode, err := pull.ParseMode(in.GetFields()["mode"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.puller.Pull(ctx, accountID, pull.Request{
		PoolID: in.GetFields()["pool_id"].GetStringValue(),
		Mode:   mode,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}

	draws := make([]any, 0, len(res.Draws))
	for _, d := range res.Draws {
		draws = append(draws, map[string]any{
			"tier":  d.Tier.String(),
			"label": d.Tier.Label(),
			"card":  d.Card,
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"id":            res.ID,
		"pool_id":       res.PoolID,
		"mode":          res.Mode.String(),
		"cost":          res.Cost,
		"tickets_after": res.TicketsAfter,
		"draws":         draws,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return out, nil
}

// GetBalance expects {account_id}.
func (s *Service) GetBalance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	accountID := in.GetFields()["account_id"].GetStringValue()
	if accountID == "" {
		return nil, status.Error(codes.InvalidArgument, "account_id is required")
	}
	b, err := s.balances.Balance(ctx, accountID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"account_id": accountID,
		"tickets":    b.Tickets,
		"diamonds":   b.Diamonds,
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return out, nil
}

// ListPools takes an empty struct.
func (s *Service) ListPools(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	cat := s.pools.Current()
	pools := make([]any, 0, len(cat.Pools()))
	for _, p := range cat.Pools() {
		pools = append(pools, map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"single_cost": p.SingleCost,
			"multi_cost":  p.MultiCost,
			"card_count":  len(p.Cards),
		})
	}
	out, err := structpb.NewStruct(map[string]any{"version": cat.Version(), "pools": pools})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return out, nil
}

func (s *Service) toStatus(err error) error {
	switch {
	case errors.Is(err, catalog.ErrPoolNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, pull.ErrInvalidMode), errors.Is(err, ledger.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error("rpc failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
