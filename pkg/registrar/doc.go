/*
Package registrar turns assigned builder instances into registered nodes
of one shared builder cluster.

For each worker, in strict index order: poll the control plane for
connection details, provision the worker's credential bundle, wait for the
worker's TLS endpoint to answer a probe, then create (first worker) or
append to (later workers) the builder cluster. The loop is serial: the
registration mechanism mutates a single shared identity and must never
see concurrent writers.

Failures abort the whole batch. The registrar does not unwind anything;
every credential directory is recorded with the orchestrator before it is
written, and the orchestrator's cleanup releases whatever exists.
*/
package registrar
