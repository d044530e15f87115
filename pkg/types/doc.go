/*
Package types defines the shared data model and error taxonomy for buildhive.

The central types are:

  - Config: immutable per-run configuration, built once at startup
  - BuilderInstance: a remote build worker as reported by the control plane
  - CredentialBundle: per-worker TLS material plus its on-disk location
  - ClusterRegistration: the single builder identity all workers join
  - RunRecord: the persisted teardown ledger entry for crash-safe cleanup

Errors are typed so callers can distinguish retriable transport conditions
(handled internally by the control-plane client) from fatal ones:
ConfigError, APIError, TimeoutError, ReadinessError, ProvisioningError and
RegistrationError. All are matched with errors.As.
*/
package types
