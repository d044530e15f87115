/*
Package controlplane implements the HTTP client for the buildhive control
plane.

Two operations are exposed. Assign requests a batch of builder instances
for a pool profile; it retries transport failures and HTTP 5xx/409/429
responses with a fixed backoff until the run's deadline expires, and fails
immediately on any other non-2xx status or on an assignment with zero
instances. Details polls one instance until it reports ready or failed.

Authentication uses a single bearer token: the ambient runner-issued token
inside a trusted runner, or the caller-supplied API token otherwise. The
client refuses to construct without one.
*/
package controlplane
