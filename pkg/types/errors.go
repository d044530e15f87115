package types

import (
	"fmt"
)

// ConfigError reports invalid or missing configuration. It is fatal and
// surfaced before any external state is touched.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// APIError reports a non-retriable control-plane response: any non-2xx
// status outside the retry set, or a 2xx assignment carrying zero workers.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("control plane error: %s", e.Body)
	}
	return fmt.Sprintf("control plane returned %d: %s", e.Status, e.Body)
}

// TimeoutError reports that the global deadline expired inside a polling
// loop. Stage identifies which loop gave up.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deadline exceeded during %s", e.Stage)
}

// ReadinessError reports a worker that reported failed status, or reported
// ready without the host metadata required to connect to it.
type ReadinessError struct {
	WorkerID string
	Reason   string
}

func (e *ReadinessError) Error() string {
	return fmt.Sprintf("worker %s not usable: %s", e.WorkerID, e.Reason)
}

// ProvisioningError reports corrupt credential material: a written
// credential file with zero size. Never retried.
type ProvisioningError struct {
	Path string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioned credential file is empty: %s", e.Path)
}

// RegistrationError reports a failed builder create or append call.
type RegistrationError struct {
	Cluster string
	Node    string
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering node %s into cluster %s: %v", e.Node, e.Cluster, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
