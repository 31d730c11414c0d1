package grpcapi

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/xtding233/tarot-house/internal/catalog"
	"github.com/xtding233/tarot-house/internal/gacha"
	"github.com/xtding233/tarot-house/internal/ledger"
	"github.com/xtding233/tarot-house/internal/pull"
)

func startServer(t *testing.T, limiter Limiter) (*grpc.ClientConn, *ledger.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	one, ten := int64(1), int64(10)
	cat, err := catalog.Build(catalog.DefaultConfig{Version: "t"}, []catalog.PoolConfig{
		{ID: "arcana", Name: "Major Arcana", Cost: catalog.CostConfig{Single: &one, Multi: &ten}, Cards: []string{"The Fool"}},
	})
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	src := catalog.NewSource(cat)
	accounts := ledger.NewService(logger, ledger.NewMemoryStore())
	proc := pull.NewProcessor(logger, src, accounts, gacha.NewSeededRNG(3), nil)

	lis := bufconn.Listen(1 << 20)
	srv := NewWithListener(lis, NewService(logger, src, proc, accounts), limiter, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn, accounts
}

func TestPullOverGRPC(t *testing.T) {
	conn, accounts := startServer(t, nil)
	ctx := context.Background()
	if _, err := accounts.Open(ctx, "alice", ledger.Balance{Tickets: 15}); err != nil {
		t.Fatalf("open: %v", err)
	}
	client := NewClient(conn)

	out, err := client.Pull(ctx, "alice", "arcana", "multi")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if got := out.GetFields()["tickets_after"].GetNumberValue(); got != 5 {
		t.Fatalf("tickets_after = %v, want 5", got)
	}
	draws := out.GetFields()["draws"].GetListValue().GetValues()
	if len(draws) != pull.MultiPullSize {
		t.Fatalf("draws = %d, want %d", len(draws), pull.MultiPullSize)
	}
	if card := draws[0].GetStructValue().GetFields()["card"].GetStringValue(); card != "The Fool" {
		t.Fatalf("card = %q", card)
	}

	_, err = client.Pull(ctx, "alice", "arcana", "multi")
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("second multi: code = %v, want FailedPrecondition", status.Code(err))
	}

	bal, err := client.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := bal.GetFields()["tickets"].GetNumberValue(); got != 5 {
		t.Fatalf("tickets = %v, want 5", got)
	}
}

func TestPullErrorCodes(t *testing.T) {
	conn, accounts := startServer(t, nil)
	ctx := context.Background()
	if _, err := accounts.Open(ctx, "bob", ledger.Balance{Tickets: 15}); err != nil {
		t.Fatalf("open: %v", err)
	}
	client := NewClient(conn)

	cases := []struct {
		name    string
		account string
		pool    string
		mode    string
		want    codes.Code
	}{
		{"unknown pool", "bob", "nope", "single", codes.NotFound},
		{"unknown account", "carol", "arcana", "single", codes.NotFound},
		{"bad mode", "bob", "arcana", "five", codes.InvalidArgument},
		{"missing account", "", "arcana", "single", codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Pull(ctx, tc.account, tc.pool, tc.mode)
			if got := status.Code(err); got != tc.want {
				t.Fatalf("code = %v, want %v", got, tc.want)
			}
		})
	}

	bal, err := accounts.Balance(ctx, "bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Tickets != 15 {
		t.Fatalf("tickets = %d, want 15", bal.Tickets)
	}
}

func TestListPoolsOverGRPC(t *testing.T) {
	conn, _ := startServer(t, nil)
	out, err := NewClient(conn).ListPools(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	pools := out.GetFields()["pools"].GetListValue().GetValues()
	if len(pools) != 1 {
		t.Fatalf("pools = %d, want 1", len(pools))
	}
	if id := pools[0].GetStructValue().GetFields()["id"].GetStringValue(); id != "arcana" {
		t.Fatalf("id = %q", id)
	}
}

func TestHealthServing(t *testing.T) {
	conn, _ := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

type keyedLimiter struct {
	limiters map[string]*rate.Limiter
}

func (l *keyedLimiter) Allow(key string) bool {
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(0.001), 1)
		l.limiters[key] = lim
	}
	return lim.Allow()
}

func TestPullRateLimited(t *testing.T) {
	conn, accounts := startServer(t, &keyedLimiter{limiters: map[string]*rate.Limiter{}})
	ctx := context.Background()
	if _, err := accounts.Open(ctx, "erin", ledger.Balance{Tickets: 15}); err != nil {
		t.Fatalf("open: %v", err)
	}
	client := NewClient(conn)

	if _, err := client.Pull(ctx, "erin", "arcana", "single"); err != nil {
		t.Fatalf("first pull: %v", err)
	}
	_, err := client.Pull(ctx, "erin", "arcana", "single")
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %v, want ResourceExhausted", status.Code(err))
	}
	if _, err := client.GetBalance(ctx, "erin"); err != nil {
		t.Fatalf("balance is not throttled: %v", err)
	}
}
