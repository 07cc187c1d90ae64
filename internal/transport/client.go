package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pointconv/internal/transform"
	"pointconv/internal/wire"
)

// Client talks to a remote conversion plugin; it satisfies transform.Client.
type Client struct {
	conn   *grpc.ClientConn
	health healthgrpc.HealthClient
}

// Dial connects to target; without options the connection is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, health: healthgrpc.NewHealthClient(conn)}, nil
}

func (c *Client) Metadata(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, metadataMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthgrpc.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthgrpc.HealthCheckResponse_SERVING, nil
}

// Convert ships req to the plugin and decodes the converted dataset. The
// returned dataset is a new object; req.Dataset is left as it was.
func (c *Client) Convert(ctx context.Context, req wire.Request) (wire.Request, error) {
	b, err := wire.Marshal(req)
	if err != nil {
		return wire.Request{}, fmt.Errorf("%w: %v", transform.ErrInvalidRequest, err)
	}
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, convertMethod, wrapperspb.Bytes(b), out); err != nil {
		return wire.Request{}, err
	}
	return wire.Unmarshal(out.GetValue())
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
