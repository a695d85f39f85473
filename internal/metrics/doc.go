// Package metrics provides the observability hooks for publish runs.
//
// It follows the Null Object pattern: components receive a Recorder through
// dependency injection and default to NoopRecorder, so metrics collection
// never requires nil checks at call sites and costs nothing when disabled.
//
//	p := pipeline.New(cfg, workspaces)                 // NoopRecorder by default
//	p.SetRecorder(metrics.NewPrometheusRecorder(reg))  // daemon activation
//
// The daemon activates PrometheusRecorder and serves the registry on its
// admin endpoint; one-shot CLI runs keep the noop default.
package metrics
