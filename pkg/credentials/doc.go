// Package credentials materializes per-worker TLS credential bundles.
//
// Each worker gets an isolated directory under the configuration root,
// <cert-root>/<cluster-name>/<worker-id>/, holding ca.pem, cert.pem and
// key.pem. Written files are stat-verified: a zero-size credential file
// means the control plane handed us corrupt material, which is fatal.
// Directories are removed recursively on cleanup.
package credentials
