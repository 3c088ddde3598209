// Package valkeytest runs a throwaway ValKey container for tests.
package valkeytest

import (
	"context"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"
)

const image = "valkey/valkey:8-alpine"

// Instance is a running container with a connected client.
type Instance struct {
	Client valkey.Client
	Port   nat.Port

	container *valkeycontainer.ValkeyContainer
}

// Start panics when the container cannot be brought up; callers are test
// mains with nothing better to do.
func Start(ctx context.Context) *Instance {
	container, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start ValKey container", "error", err)
		panic(err)
	}

	port, err := container.MappedPort(ctx, nat.Port("6379"))
	if err != nil {
		slogctx.Error(ctx, "Failed to map a port for the ValKey container", "error", err)
		panic(err)
	}

	inst := &Instance{Port: port, container: container}

	inst.Client, err = valkey.NewClient(valkey.ClientOption{InitAddress: []string{inst.Address()}})
	if err != nil {
		slogctx.Error(ctx, "Failed to initialise a ValKey client", "error", err)
		panic(err)
	}

	return inst
}

// Address is the host:port the container is reachable on.
func (i *Instance) Address() string {
	return net.JoinHostPort("localhost", i.Port.Port())
}

func (i *Instance) Terminate(ctx context.Context) {
	i.Client.Close()
	if err := i.container.Terminate(ctx); err != nil {
		slogctx.Error(ctx, "Failed to terminate ValKey container", "error", err)
	}
}
