package buildx

import (
	"context"

	"github.com/buildhive/buildhive/pkg/types"
)

// RegisterRequest describes one node joining a builder cluster.
type RegisterRequest struct {
	// Name is the builder cluster identity
	Name string

	// NodeName identifies this node within the cluster
	NodeName string

	// Endpoint is the worker's build-protocol address, tcp://ip:port
	Endpoint string

	// Platforms is the comma-separable platform list for this node
	Platforms []string

	// Bundle provides the transport credentials for the node
	Bundle *types.CredentialBundle
}

// Driver is the builder registration mechanism. The first node of a
// cluster goes through Create; every later node through Append. The
// underlying mechanism has no internal concurrency control, so callers
// must never invoke Create or Append concurrently for the same cluster.
type Driver interface {
	Create(ctx context.Context, req RegisterRequest) error
	Append(ctx context.Context, req RegisterRequest) error
	Remove(ctx context.Context, name string) error
}
