// Package client connects to a running tgsiftd over its profile socket.
package client

import (
	"fmt"

	"github.com/matheus3301/tgsift/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a Sift service client bound to one daemon socket.
type Client struct {
	*api.Client
	conn *grpc.ClientConn
}

// New prepares a connection to the daemon's Unix domain socket. The socket is
// dialed lazily on the first call.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{Client: api.NewClient(conn), conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
