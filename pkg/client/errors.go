package client

import (
	intclient "github.com/rotolab/roto/internal/client"
)

// Sentinel errors surfaced by the transport, re-exported so callers do
// not have to import the internal package.
var (
	ErrDaemonNotRunning = intclient.ErrDaemonNotRunning
	ErrPermissionDenied = intclient.ErrPermissionDenied
	ErrNotFound         = intclient.ErrNotFound
)
