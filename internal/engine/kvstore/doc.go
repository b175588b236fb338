// Package kvstore implements the log-structured storage engine.
//
// All mutations are appended as JSON records to a single active log
// file named <epoch>.log. An in-memory sharded index maps each key to
// the (epoch, offset, length) of its latest record. Reads resolve the
// index and fetch the record bytes directly from the log file.
//
// When enough index entries have been overwritten, or the active file
// grows past a size limit, compaction rewrites the live records into a
// new log file with the next epoch, publishes a fresh index, and
// unlinks the superseded file. Readers that raced the unlink re-resolve
// through the new index and retry.
//
// On open, the highest-epoch log file is replayed to rebuild the index.
// A partial trailing record (torn write) is discarded, not treated as
// corruption.
package kvstore
