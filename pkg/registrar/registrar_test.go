package registrar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildhive/buildhive/pkg/buildx"
	"github.com/buildhive/buildhive/pkg/controlplane"
	"github.com/buildhive/buildhive/pkg/credentials"
	"github.com/buildhive/buildhive/pkg/deadline"
	"github.com/buildhive/buildhive/pkg/health"
	"github.com/buildhive/buildhive/pkg/types"
)

// fakeDriver records registration calls in order
type fakeDriver struct {
	mu       sync.Mutex
	calls    []string
	requests []buildx.RegisterRequest
	failOn   string
	inFlight bool
}

func (d *fakeDriver) record(op string, req buildx.RegisterRequest) error {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return fmt.Errorf("concurrent registration detected")
	}
	d.inFlight = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	d.mu.Lock()
	call := op + ":" + req.NodeName
	d.calls = append(d.calls, call)
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	if d.failOn == call {
		return fmt.Errorf("injected failure for %s", call)
	}
	return nil
}

func (d *fakeDriver) Create(ctx context.Context, req buildx.RegisterRequest) error {
	return d.record("create", req)
}

func (d *fakeDriver) Append(ctx context.Context, req buildx.RegisterRequest) error {
	return d.record("append", req)
}

func (d *fakeDriver) Remove(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "remove:"+name)
	return nil
}

type alwaysHealthy struct{}

func (alwaysHealthy) Check(ctx context.Context) health.Result { return health.Result{Healthy: true} }
func (alwaysHealthy) Type() health.CheckType                  { return health.CheckTypeTLS }

// fixture wires a registrar against an httptest control plane whose
// workers report ready after the given number of polls.
type fixture struct {
	registrar *Registrar
	driver    *fakeDriver
	certRoot  string
	recorded  []string
}

func newFixture(t *testing.T, pollsUntilReady map[string]int, failedWorkers map[string]bool) *fixture {
	t.Helper()

	var mu sync.Mutex
	polls := make(map[string]int)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/builders/"), "/details")

		mu.Lock()
		polls[id]++
		count := polls[id]
		mu.Unlock()

		instance := types.BuilderInstance{ID: id, Arch: "amd64", Status: types.InstanceStatusStarting}
		if failedWorkers[id] {
			instance.Status = types.InstanceStatusFailed
		} else if count >= pollsUntilReady[id] {
			instance.Status = types.InstanceStatusReady
			instance.Metadata = &types.InstanceMetadata{
				Host:       "tcp://10.0.0." + id[len(id)-1:],
				CACert:     "ca-" + id,
				ClientCert: "cert-" + id,
				ClientKey:  "key-" + id,
			}
		}
		_ = json.NewEncoder(w).Encode(instance)
	}))
	t.Cleanup(server.Close)

	tracker := deadline.NewTracker(5 * time.Second)
	client, err := controlplane.NewClient(types.Config{
		Token:      "t",
		APIBaseURL: server.URL,
	}, tracker)
	require.NoError(t, err)
	client.PollInterval = time.Millisecond

	waiter := health.NewWaiter(tracker)
	waiter.ProbeInterval = time.Millisecond
	waiter.NewChecker = func(host string, bundle *types.CredentialBundle) (health.Checker, error) {
		return alwaysHealthy{}, nil
	}

	certRoot := t.TempDir()
	driver := &fakeDriver{}

	f := &fixture{driver: driver, certRoot: certRoot}
	f.registrar = New(Config{
		Client:      client,
		Provisioner: credentials.NewProvisioner(certRoot),
		Waiter:      waiter,
		Driver:      driver,
		ClusterName: "buildhive-test",
		RecordDir:   func(dir string) { f.recorded = append(f.recorded, dir) },
	})
	return f
}

func instances(ids ...string) []types.BuilderInstance {
	out := make([]types.BuilderInstance, len(ids))
	for i, id := range ids {
		out[i] = types.BuilderInstance{ID: id, Arch: "amd64"}
	}
	return out
}

func TestRegisterAll_CreateThenAppendInOrder(t *testing.T) {
	f := newFixture(t,
		map[string]int{"worker-1": 2, "worker-2": 1, "worker-3": 1},
		nil,
	)

	err := f.registrar.RegisterAll(context.Background(), instances("worker-1", "worker-2", "worker-3"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create:worker-1",
		"append:worker-2",
		"append:worker-3",
	}, f.driver.calls)

	// Every registration used the shared cluster identity
	for _, req := range f.driver.requests {
		assert.Equal(t, "buildhive-test", req.Name)
		assert.Equal(t, []string{"linux/amd64"}, req.Platforms)
		assert.NotNil(t, req.Bundle)
	}

	// Endpoints carry the default build-protocol port
	assert.Equal(t, "tcp://10.0.0.1:2376", f.driver.requests[0].Endpoint)

	reg := f.registrar.Registration()
	assert.Equal(t, "buildhive-test", reg.Name)
	assert.Equal(t, []string{"worker-1", "worker-2", "worker-3"}, reg.Nodes)

	// One credential dir recorded per worker, each populated
	require.Len(t, f.recorded, 3)
	for _, dir := range f.recorded {
		info, err := os.Stat(filepath.Join(dir, "ca.pem"))
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestRegisterAll_FailedWorkerAbortsBatch(t *testing.T) {
	f := newFixture(t,
		map[string]int{"worker-1": 1, "worker-3": 1},
		map[string]bool{"worker-2": true},
	)

	err := f.registrar.RegisterAll(context.Background(), instances("worker-1", "worker-2", "worker-3"))

	var readyErr *types.ReadinessError
	require.ErrorAs(t, err, &readyErr)
	assert.Equal(t, "worker-2", readyErr.WorkerID)

	// Worker 1 was registered before the abort; worker 3 never was
	assert.Equal(t, []string{"create:worker-1"}, f.driver.calls)

	// Worker 1's credential dir was recorded for later cleanup
	require.Len(t, f.recorded, 1)
	assert.Contains(t, f.recorded[0], "worker-1")
}

func TestRegisterAll_RegistrationFailure(t *testing.T) {
	f := newFixture(t,
		map[string]int{"worker-1": 1, "worker-2": 1},
		nil,
	)
	f.driver.failOn = "append:worker-2"

	err := f.registrar.RegisterAll(context.Background(), instances("worker-1", "worker-2"))

	var regErr *types.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "buildhive-test", regErr.Cluster)
	assert.Equal(t, "worker-2", regErr.Node)

	// Both credential dirs were recorded before the failure
	assert.Len(t, f.recorded, 2)
}

func TestNormalizePlatforms(t *testing.T) {
	tests := []struct {
		name string
		arch string
		want []string
	}{
		{
			name: "bare architecture",
			arch: "amd64",
			want: []string{"linux/amd64"},
		},
		{
			name: "already prefixed",
			arch: "linux/arm64",
			want: []string{"linux/arm64"},
		},
		{
			name: "mixed list",
			arch: "amd64,linux/arm64,arm",
			want: []string{"linux/amd64", "linux/arm64", "linux/arm"},
		},
		{
			name: "whitespace and empties",
			arch: " amd64, ,arm64 ",
			want: []string{"linux/amd64", "linux/arm64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePlatforms(tt.arch))
		})
	}
}

func TestBuildEndpoint(t *testing.T) {
	endpoint, err := buildEndpoint("tcp://10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "tcp://10.0.0.5:2376", endpoint)

	endpoint, err = buildEndpoint("tcp://10.0.0.5:1234")
	require.NoError(t, err)
	assert.Equal(t, "tcp://10.0.0.5:1234", endpoint)
}
