// Package metrics exposes review activity to Prometheus: rounds by outcome,
// worker latency and failures by lens, findings by verdict category, and
// duplicates removed. Series live on a private registry served at /metrics
// when an address is configured.
package metrics
