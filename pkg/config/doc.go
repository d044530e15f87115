// Package config assembles the immutable run configuration from CLI flags,
// an optional YAML pool profile, and the environment.
//
// The environment is consulted exactly once, inside Build: the control-plane
// address override and the trusted-runner verification token. No other
// package reads the environment, which keeps every component testable with
// plain struct values.
package config
