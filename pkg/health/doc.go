/*
Package health verifies that a provisioned worker endpoint is reachable.

The TLSChecker performs a lightweight version probe against the worker's
build-protocol endpoint, authenticated with the worker's provisioned
client certificate. Success is purely a non-failing network round trip;
the response body and status are not validated, because a worker that can
complete a TLS handshake and answer anything at all is ready to accept a
builder registration.

The Waiter repeats probes on a fixed interval until one succeeds or the
run's global deadline expires. Each probe is bounded by its own short
connect and total timeouts so a black-holed endpoint cannot absorb the
whole deadline in a single dial.
*/
package health
