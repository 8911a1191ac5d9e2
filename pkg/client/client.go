// Package client provides typed APIs for the roto daemon.
package client

import (
	intclient "github.com/rotolab/roto/internal/client"
)

// Client talks to the daemon over its unix socket.
type Client struct {
	*intclient.Client
}

func New(socketPath string) *Client {
	return &Client{Client: intclient.NewClient(socketPath)}
}
