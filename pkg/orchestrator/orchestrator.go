package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/buildhive/buildhive/pkg/buildx"
	"github.com/buildhive/buildhive/pkg/controlplane"
	"github.com/buildhive/buildhive/pkg/credentials"
	"github.com/buildhive/buildhive/pkg/deadline"
	"github.com/buildhive/buildhive/pkg/events"
	"github.com/buildhive/buildhive/pkg/health"
	"github.com/buildhive/buildhive/pkg/log"
	"github.com/buildhive/buildhive/pkg/metrics"
	"github.com/buildhive/buildhive/pkg/registrar"
	"github.com/buildhive/buildhive/pkg/state"
	"github.com/buildhive/buildhive/pkg/types"
)

// State represents the orchestrator lifecycle state
type State string

const (
	StateConstructed State = "constructed"
	StateAssigning   State = "assigning"
	StateAssigned    State = "assigned"
	StateSettingUp   State = "setting-up"
	StateReady       State = "ready"
	StateCleaningUp  State = "cleaning-up"
	StateTerminal    State = "terminal"
)

type assignResult struct {
	instances []types.BuilderInstance
	err       error
}

// Deps are the orchestrator's injectable collaborators. Zero values get
// production defaults.
type Deps struct {
	Driver buildx.Driver
	Broker *events.Broker
	Store  *state.Store
}

// Orchestrator owns one provisioning run: it sequences assignment,
// per-worker registration and guaranteed teardown, and tracks every piece
// of external state the run creates.
type Orchestrator struct {
	cfg     types.Config
	tracker *deadline.Tracker

	client      *controlplane.Client
	provisioner *credentials.Provisioner
	waiter      *health.Waiter
	driver      buildx.Driver
	broker      *events.Broker
	store       *state.Store

	logger zerolog.Logger

	mu             sync.Mutex
	state          State
	instances      []types.BuilderInstance
	credentialDirs []string
	assignCh       chan assignResult
	setupStarted   bool
}

// New creates an orchestrator for one run. The control-plane client is
// constructed here, so missing credentials surface before any external
// state is touched.
func New(cfg types.Config, deps Deps) (*Orchestrator, error) {
	tracker := deadline.NewTracker(cfg.Timeout)

	client, err := controlplane.NewClient(cfg, tracker)
	if err != nil {
		return nil, err
	}

	driver := deps.Driver
	if driver == nil {
		driver = buildx.NewExecDriver()
	}

	return &Orchestrator{
		cfg:         cfg,
		tracker:     tracker,
		client:      client,
		provisioner: credentials.NewProvisioner(cfg.CertRoot),
		waiter:      health.NewWaiter(tracker),
		driver:      driver,
		broker:      deps.Broker,
		store:       deps.Store,
		logger:      log.WithComponent("orchestrator"),
		state:       StateConstructed,
	}, nil
}

// Client exposes the control-plane client, mainly so callers can tune
// retry intervals or read the attempt counter.
func (o *Orchestrator) Client() *controlplane.Client {
	return o.client
}

// Waiter exposes the health waiter for interval tuning.
func (o *Orchestrator) Waiter() *health.Waiter {
	return o.waiter
}

// Assign starts builder assignment in the background and returns a handle
// that closes when the request completes. At most one assignment is
// tracked: calling Assign again replaces the handle and the superseded
// call's result is discarded (last call wins); Setup joins only the
// latest.
func (o *Orchestrator) Assign(ctx context.Context) <-chan struct{} {
	ch := make(chan assignResult, 1)
	done := make(chan struct{})

	o.mu.Lock()
	o.assignCh = ch
	o.state = StateAssigning
	o.mu.Unlock()

	o.publish(events.EventAssignStarted, "", "requesting builder assignment")

	go func() {
		defer close(done)
		instances, err := o.client.Assign(ctx, o.cfg.Profile)
		ch <- assignResult{instances: instances, err: err}
	}()

	return done
}

// Setup joins the in-flight assignment, then registers every assigned
// worker into the builder cluster. On full success the orchestrator is
// Ready and Cleanup has external state to undo.
func (o *Orchestrator) Setup(ctx context.Context) error {
	o.mu.Lock()
	ch := o.assignCh
	have := len(o.instances) > 0
	o.mu.Unlock()

	if ch != nil {
		res := <-ch
		if res.err != nil {
			return res.err
		}

		o.mu.Lock()
		o.instances = res.instances
		o.assignCh = nil
		o.state = StateAssigned
		o.mu.Unlock()

		o.publish(events.EventAssignCompleted, "",
			fmt.Sprintf("%d builders assigned", len(res.instances)))
	} else if !have {
		return fmt.Errorf("no builders assigned: call Assign before Setup")
	}

	o.mu.Lock()
	o.state = StateSettingUp
	o.setupStarted = true
	instances := o.instances
	o.mu.Unlock()

	o.recordRun()

	reg := registrar.New(registrar.Config{
		Client:      o.client,
		Provisioner: o.provisioner,
		Waiter:      o.waiter,
		Driver:      o.driver,
		Broker:      o.broker,
		ClusterName: o.cfg.ClusterName,
		RecordDir:   o.recordCredentialDir,
	})

	if err := reg.RegisterAll(ctx, instances); err != nil {
		return err
	}

	o.mu.Lock()
	o.state = StateReady
	o.mu.Unlock()

	o.markRegistered()
	o.logger.Info().
		Str("cluster", o.cfg.ClusterName).
		Strs("nodes", reg.Registration().Nodes).
		Msg("builder cluster ready")

	return nil
}

// Cleanup releases all external state the run created: the builder
// cluster identity and every provisioned credential directory. The two
// teardown arms are independent; a failure in one never prevents the
// other, and neither is ever surfaced as an error. A run whose Setup
// never touched external state is a no-op.
func (o *Orchestrator) Cleanup(ctx context.Context) {
	o.mu.Lock()
	if !o.setupStarted {
		o.state = StateTerminal
		o.mu.Unlock()
		return
	}
	o.state = StateCleaningUp
	dirs := append([]string(nil), o.credentialDirs...)
	o.mu.Unlock()

	// Remove the cluster identity, best effort
	if err := o.driver.Remove(ctx, o.cfg.ClusterName); err != nil {
		metrics.TeardownsTotal.WithLabelValues("failure").Inc()
		o.logger.Warn().Err(err).
			Str("cluster", o.cfg.ClusterName).
			Msg("failed to remove builder cluster")
	} else {
		metrics.TeardownsTotal.WithLabelValues("success").Inc()
		o.publish(events.EventClusterRemoved, "", "builder cluster removed")
	}

	// Remove credential directories, independent of the cluster arm
	for _, dir := range dirs {
		if err := credentials.Remove(dir); err != nil {
			metrics.TeardownsTotal.WithLabelValues("failure").Inc()
			o.logger.Warn().Err(err).Str("dir", dir).
				Msg("failed to remove credential directory")
		} else {
			metrics.TeardownsTotal.WithLabelValues("success").Inc()
		}
	}

	if o.store != nil {
		if err := o.store.DeleteRun(o.cfg.ClusterName); err != nil {
			o.logger.Warn().Err(err).Msg("failed to clear run record")
		}
	}

	o.mu.Lock()
	o.state = StateTerminal
	o.mu.Unlock()

	o.publish(events.EventCleanupCompleted, "", "cleanup completed")
}

// IsAssigned reports whether builder assignment has completed.
func (o *Orchestrator) IsAssigned() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.instances) > 0
}

// BuilderCount returns the number of assigned builders.
func (o *Orchestrator) BuilderCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.instances)
}

// BuilderIDs returns the identifiers of the assigned builders.
func (o *Orchestrator) BuilderIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := make([]string, len(o.instances))
	for i, instance := range o.instances {
		ids[i] = instance.ID
	}
	return ids
}

// ClusterName returns the builder cluster identity for this run.
func (o *Orchestrator) ClusterName() string {
	return o.cfg.ClusterName
}

// CurrentState returns the lifecycle state.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) recordCredentialDir(dir string) {
	o.mu.Lock()
	for _, existing := range o.credentialDirs {
		if existing == dir {
			o.mu.Unlock()
			return
		}
	}
	o.credentialDirs = append(o.credentialDirs, dir)
	o.mu.Unlock()

	o.recordRun()
}

// recordRun persists the current teardown ledger entry.
func (o *Orchestrator) recordRun() {
	if o.store == nil {
		return
	}

	o.mu.Lock()
	record := &types.RunRecord{
		ClusterName:    o.cfg.ClusterName,
		Profile:        o.cfg.Profile,
		CredentialDirs: append([]string(nil), o.credentialDirs...),
		CreatedAt:      time.Now(),
	}
	o.mu.Unlock()

	if err := o.store.PutRun(record); err != nil {
		o.logger.Warn().Err(err).Msg("failed to persist run record")
	}
}

func (o *Orchestrator) markRegistered() {
	if o.store == nil {
		return
	}
	record, err := o.store.GetRun(o.cfg.ClusterName)
	if err != nil {
		return
	}
	record.Registered = true
	if err := o.store.PutRun(record); err != nil {
		o.logger.Warn().Err(err).Msg("failed to persist run record")
	}
}

func (o *Orchestrator) publish(typ events.EventType, workerID, msg string) {
	if o.broker == nil {
		return
	}
	o.broker.Publish(&events.Event{
		Type:     typ,
		WorkerID: workerID,
		Cluster:  o.cfg.ClusterName,
		Message:  msg,
	})
}

// CleanupStale replays recorded runs that never completed their teardown,
// removing each run's builder cluster and credential directories. Used by
// `buildhive down --all` after a crashed run.
func CleanupStale(ctx context.Context, store *state.Store, driver buildx.Driver) error {
	logger := log.WithComponent("orchestrator")

	records, err := store.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list recorded runs: %w", err)
	}

	for _, record := range records {
		logger.Info().Str("cluster", record.ClusterName).Msg("cleaning up stale run")

		if err := driver.Remove(ctx, record.ClusterName); err != nil {
			logger.Warn().Err(err).
				Str("cluster", record.ClusterName).
				Msg("failed to remove builder cluster")
		}
		for _, dir := range record.CredentialDirs {
			if err := credentials.Remove(dir); err != nil {
				logger.Warn().Err(err).Str("dir", dir).
					Msg("failed to remove credential directory")
			}
		}
		if err := store.DeleteRun(record.ClusterName); err != nil {
			logger.Warn().Err(err).Msg("failed to clear run record")
		}
	}

	return nil
}
