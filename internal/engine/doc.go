// Package engine defines the pluggable storage engine contract.
//
// An engine owns one data directory for its lifetime. The directory is
// claimed by a sentinel file recording which engine kind wrote it;
// opening a directory with a different kind fails with ErrWrongEngine.
//
// Implementations live in subpackages: kvstore (the log-structured
// engine) and badgerkv (the embedded Badger adapter).
package engine
