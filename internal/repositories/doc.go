// package repositories provides the persistence layer for the destination
// experiment store.
//
// RecordRepository owns the records, record_params, record_tags and
// metric_samples tables. It is safe for concurrent commit workers as long as
// distinct workers touch distinct records, which the commit driver's
// partitioning guarantees.
package repositories
