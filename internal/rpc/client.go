package rpc

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cipherlab/internal/numtheory"
	"github.com/RowanDark/cipherlab/internal/observability/tracing"
)

// Client calls a remote cipherlab.v1.Cipher service.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

// Dial connects to addr. A non-empty token is sent as a bearer token on
// every call.
func Dial(addr, token string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(tracing.UnaryClientInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, token: strings.TrimSpace(token)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Execute runs one operation remotely.
func (c *Client) Execute(ctx context.Context, operation, input string, params map[string]any) (string, error) {
	req := map[string]any{"operation": operation, "input": input}
	if len(params) > 0 {
		req["params"] = params
	}
	out, err := c.invoke(ctx, "Execute", req)
	if err != nil {
		return "", err
	}
	return out.GetFields()["output"].GetStringValue(), nil
}

// RunRecipe runs a recipe stored on the server.
func (c *Client) RunRecipe(ctx context.Context, recipe, input string, reverse bool) (string, error) {
	out, err := c.invoke(ctx, "RunRecipe", map[string]any{"recipe": recipe, "input": input, "reverse": reverse})
	if err != nil {
		return "", err
	}
	return out.GetFields()["output"].GetStringValue(), nil
}

// ListOperations returns operation names, optionally filtered by type.
func (c *Client) ListOperations(ctx context.Context, opType string) ([]string, error) {
	out, err := c.invoke(ctx, "ListOperations", map[string]any{"type": opType})
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range out.GetFields()["operations"].GetListValue().GetValues() {
		names = append(names, v.GetStructValue().GetFields()["name"].GetStringValue())
	}
	return names, nil
}

// GenerateKeyPair derives a key pair remotely.
func (c *Client) GenerateKeyPair(ctx context.Context, p, q, e int64) (numtheory.KeyPair, error) {
	out, err := c.invoke(ctx, "GenerateKeyPair", map[string]any{"p": p, "q": q, "e": e})
	if err != nil {
		return numtheory.KeyPair{}, err
	}
	var kp numtheory.KeyPair
	if err := convert(out, &kp); err != nil {
		return numtheory.KeyPair{}, fmt.Errorf("decode key pair: %w", err)
	}
	return kp, nil
}
