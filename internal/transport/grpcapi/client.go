package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the TarotHouse service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Pull runs a pull for accountID. mode is "single" or "multi".
func (c *Client) Pull(ctx context.Context, accountID, poolID, mode string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Pull", map[string]any{
		"account_id": accountID,
		"pool_id":    poolID,
		"mode":       mode,
	}, opts...)
}

// GetBalance reads the account balance.
func (c *Client) GetBalance(ctx context.Context, accountID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetBalance", map[string]any{"account_id": accountID}, opts...)
}

// ListPools lists the catalog.
func (c *Client) ListPools(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListPools", map[string]any{}, opts...)
}
