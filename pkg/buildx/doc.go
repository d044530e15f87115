// Package buildx registers provisioned workers into a docker buildx
// builder instance.
//
// The Driver interface abstracts the registration mechanism so the
// registrar can be tested with a fake; the production ExecDriver shells
// out to the docker CLI, using the remote driver with the worker's
// provisioned credential files as driver options.
package buildx
