package types

import (
	"time"
)

// Config holds the immutable configuration for one orchestration run.
// It is assembled once by pkg/config at construction and never mutated;
// components receive it by value or read single fields from it.
type Config struct {
	// Profile is the builder pool profile requested from the control plane
	Profile string

	// Token is the caller-supplied API credential (standalone mode)
	Token string

	// Timeout is the global deadline shared by every polling loop
	Timeout time.Duration

	// APIBaseURL is the control-plane base address (env override applied)
	APIBaseURL string

	// TrustedRunner indicates execution inside a trusted runner context,
	// where RunnerToken substitutes for Token
	TrustedRunner bool

	// RunnerToken is the ambient runner-issued verification token
	RunnerToken string

	// ClusterName is the generated identity all workers register under
	ClusterName string

	// CertRoot is the local configuration root for credential material
	CertRoot string
}

// BearerToken returns the credential used for control-plane requests.
// Trusted-runner mode takes precedence over a caller-supplied token.
func (c Config) BearerToken() string {
	if c.TrustedRunner {
		return c.RunnerToken
	}
	return c.Token
}

// InstanceStatus represents the control-plane reported state of a builder
type InstanceStatus string

const (
	InstanceStatusPending  InstanceStatus = "pending"
	InstanceStatusStarting InstanceStatus = "starting"
	InstanceStatusReady    InstanceStatus = "ready"
	InstanceStatusFailed   InstanceStatus = "failed"
)

// InstanceMetadata carries the connection details reported once a builder
// instance is ready
type InstanceMetadata struct {
	Host       string `json:"host"`
	CACert     string `json:"ca"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
}

// BuilderInstance represents one remote build worker assigned by the
// control plane. Status and Metadata are refreshed by details polling;
// the remaining fields are fixed at assignment.
type BuilderInstance struct {
	ID       string            `json:"id"`
	Arch     string            `json:"arch"`
	Status   InstanceStatus    `json:"status"`
	Metadata *InstanceMetadata `json:"metadata,omitempty"`
}

// CredentialBundle is the TLS material provisioned for one worker plus the
// directory it was written to. The orchestrator retains only Dir for
// cleanup; the bundle itself is handed to the health checker and the
// builder registration step.
type CredentialBundle struct {
	CACert     []byte
	ClientCert []byte
	ClientKey  []byte
	Dir        string
}

// ClusterRegistration tracks the single logical builder identity that all
// workers are registered under. The first worker creates it; every
// subsequent worker appends to it.
type ClusterRegistration struct {
	Name  string
	Nodes []string
}

// RunRecord is the persisted teardown ledger entry for one orchestration
// run. It survives process crashes so a later invocation can still release
// external state.
type RunRecord struct {
	ClusterName    string    `json:"cluster_name"`
	Profile        string    `json:"profile"`
	CredentialDirs []string  `json:"credential_dirs"`
	Registered     bool      `json:"registered"`
	CreatedAt      time.Time `json:"created_at"`
}
