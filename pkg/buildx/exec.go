package buildx

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/buildhive/buildhive/pkg/log"
)

// ExecDriver registers builder nodes by shelling out to the docker buildx
// CLI with the remote driver.
type ExecDriver struct {
	// DockerBin allows overriding the docker binary path
	DockerBin string

	logger zerolog.Logger
}

// NewExecDriver creates a driver that invokes the docker CLI.
func NewExecDriver() *ExecDriver {
	return &ExecDriver{
		DockerBin: "docker",
		logger:    log.WithComponent("buildx"),
	}
}

// Create creates the builder cluster with its first node.
func (d *ExecDriver) Create(ctx context.Context, req RegisterRequest) error {
	return d.register(ctx, req, false)
}

// Append adds a node to an existing builder cluster.
func (d *ExecDriver) Append(ctx context.Context, req RegisterRequest) error {
	return d.register(ctx, req, true)
}

// Remove deletes the builder cluster.
func (d *ExecDriver) Remove(ctx context.Context, name string) error {
	return d.run(ctx, "buildx", "rm", name)
}

func (d *ExecDriver) register(ctx context.Context, req RegisterRequest, appendNode bool) error {
	return d.run(ctx, registerArgs(req, appendNode)...)
}

func registerArgs(req RegisterRequest, appendNode bool) []string {
	args := []string{
		"buildx", "create",
		"--name", req.Name,
		"--node", req.NodeName,
		"--driver", "remote",
		"--driver-opt", driverOpts(req),
		"--platform", strings.Join(req.Platforms, ","),
	}
	if appendNode {
		args = append(args, "--append")
	}
	return append(args, req.Endpoint)
}

func (d *ExecDriver) run(ctx context.Context, args ...string) error {
	d.logger.Debug().Strs("args", args).Msg("invoking docker")

	cmd := exec.CommandContext(ctx, d.DockerBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w\noutput:\n%s",
			strings.Join(args[:2], " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func driverOpts(req RegisterRequest) string {
	return fmt.Sprintf("cacert=%s,cert=%s,key=%s",
		filepath.Join(req.Bundle.Dir, "ca.pem"),
		filepath.Join(req.Bundle.Dir, "cert.pem"),
		filepath.Join(req.Bundle.Dir, "key.pem"),
	)
}
