// Package metrics defines the Prometheus collectors for buildhive.
//
// Collectors are package-level and registered in init, following the usual
// client_golang pattern. Handler exposes the scrape endpoint for callers
// that serve one; short-lived CLI runs simply increment the counters so a
// long-lived embedding (a CI agent, say) can export them.
package metrics
