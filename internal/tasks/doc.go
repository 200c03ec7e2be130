// package tasks implements the experiment sync pipeline.
//
// The core abstraction is SyncEngine, which drives one full pass: resolve
// experiments, list their runs, fetch run data in parallel, and commit the
// resulting transfer records into the destination store through a partitioned
// worker pool. Operations emit progress updates via channels for non-blocking
// status reporting to the CLI layer. Watcher wraps the engine for
// continuous mode.
package tasks
