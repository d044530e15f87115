package registrar

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/buildhive/buildhive/pkg/buildx"
	"github.com/buildhive/buildhive/pkg/controlplane"
	"github.com/buildhive/buildhive/pkg/credentials"
	"github.com/buildhive/buildhive/pkg/events"
	"github.com/buildhive/buildhive/pkg/health"
	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/metrics"
	"github.com/buildhive/buildhive/pkg/types"
)

// osFamily prefixes bare architecture components in platform lists. The
// remote builder pool is Linux-only.
const osFamily = "linux"

// Registrar drives assigned workers through details polling, credential
// provisioning, endpoint health checking and registration into the shared
// builder cluster. Registration is strictly sequential: the underlying
// registration mechanism mutates one shared cluster identity and has no
// internal concurrency control.
type Registrar struct {
	client      *controlplane.Client
	provisioner *credentials.Provisioner
	waiter      *health.Waiter
	driver      buildx.Driver
	broker      *events.Broker

	clusterName  string
	registration types.ClusterRegistration

	// recordDir hands each credential directory to the orchestrator's
	// teardown ledger before anything downstream can fail
	recordDir func(dir string)

	logger zerolog.Logger
}

// Config wires a registrar's collaborators.
type Config struct {
	Client      *controlplane.Client
	Provisioner *credentials.Provisioner
	Waiter      *health.Waiter
	Driver      buildx.Driver
	Broker      *events.Broker
	ClusterName string
	RecordDir   func(dir string)
}

// New creates a registrar.
func New(cfg Config) *Registrar {
	return &Registrar{
		client:       cfg.Client,
		provisioner:  cfg.Provisioner,
		waiter:       cfg.Waiter,
		driver:       cfg.Driver,
		broker:       cfg.Broker,
		clusterName:  cfg.ClusterName,
		registration: types.ClusterRegistration{Name: cfg.ClusterName},
		recordDir:    cfg.RecordDir,
		logger:       log.WithCluster(cfg.ClusterName),
	}
}

// RegisterAll registers every assigned worker into the builder cluster,
// strictly in index order. The first worker creates the cluster identity;
// each subsequent worker appends to it. Any failure aborts the batch;
// partially-registered state is left for the orchestrator's cleanup.
func (r *Registrar) RegisterAll(ctx context.Context, instances []types.BuilderInstance) error {
	for i, instance := range instances {
		if err := r.registerOne(ctx, i, instance); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registrar) registerOne(ctx context.Context, index int, assigned types.BuilderInstance) error {
	logger := r.logger.With().Str("worker_id", assigned.ID).Int("index", index).Logger()

	logger.Info().Msg("waiting for worker details")
	instance, err := r.client.Details(ctx, assigned.ID)
	if err != nil {
		return err
	}
	meta := instance.Metadata

	// Record the directory before provisioning so a partial write is
	// still removed by cleanup
	r.recordDir(r.provisioner.BundleDir(r.clusterName, instance.ID))

	bundle, err := r.provisioner.Provision(
		r.clusterName, instance.ID,
		[]byte(meta.CACert), []byte(meta.ClientCert), []byte(meta.ClientKey),
	)
	if err != nil {
		return err
	}

	logger.Info().Str("host", meta.Host).Msg("waiting for worker endpoint")
	if err := r.waiter.WaitReady(ctx, meta.Host, bundle); err != nil {
		return err
	}
	r.publish(events.EventWorkerReady, instance.ID, "worker endpoint reachable")

	endpoint, err := buildEndpoint(meta.Host)
	if err != nil {
		return err
	}

	req := buildx.RegisterRequest{
		Name:      r.clusterName,
		NodeName:  instance.ID,
		Endpoint:  endpoint,
		Platforms: normalizePlatforms(instance.Arch),
		Bundle:    bundle,
	}

	if index == 0 {
		logger.Info().Str("endpoint", endpoint).Msg("creating builder cluster")
		err = r.driver.Create(ctx, req)
	} else {
		logger.Info().Str("endpoint", endpoint).Msg("appending worker to builder cluster")
		err = r.driver.Append(ctx, req)
	}
	if err != nil {
		return &types.RegistrationError{Cluster: r.clusterName, Node: instance.ID, Err: err}
	}

	r.registration.Nodes = append(r.registration.Nodes, instance.ID)
	metrics.WorkersRegisteredTotal.Inc()
	if index == 0 {
		r.publish(events.EventClusterCreated, instance.ID, "builder cluster created")
	}
	r.publish(events.EventWorkerRegistered, instance.ID, "worker registered")

	return nil
}

// Registration returns the builder cluster identity with the nodes
// registered so far.
func (r *Registrar) Registration() types.ClusterRegistration {
	return r.registration
}

func (r *Registrar) publish(typ events.EventType, workerID, msg string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:     typ,
		WorkerID: workerID,
		Cluster:  r.clusterName,
		Message:  msg,
	})
}

// buildEndpoint converts a worker host into the tcp endpoint handed to
// the builder registration, applying the default build-protocol port.
func buildEndpoint(host string) (string, error) {
	addr, err := health.ParseEndpoint(host)
	if err != nil {
		return "", err
	}
	return "tcp://" + addr, nil
}

// normalizePlatforms turns a control-plane architecture tag into the
// platform list expected by the builder registration. Components are
// comma-separated; bare architectures are prefixed with the OS family.
func normalizePlatforms(arch string) []string {
	parts := strings.Split(arch, ",")
	platforms := make([]string, 0, len(parts))
	for _, part := range parts {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			p = osFamily + "/" + p
		}
		platforms = append(platforms, p)
	}
	return platforms
}
