package kvstore

import (
	"os"
)

// readerCache holds a reader's open log file handles, keyed by
// epoch%2. At most two epochs are ever live at once (the active file
// and, briefly, its compacted predecessor), so two slots suffice.
//
// Each reader (one per concurrent Get, pooled) owns its cache; handles
// are never shared across goroutines.
type readerCache struct {
	dir   string
	slots [2]readerSlot
}

type readerSlot struct {
	epoch uint64
	file  *os.File
}

func newReaderCache(dir string) *readerCache {
	return &readerCache{dir: dir}
}

// readAt reads the record bytes at loc, opening or refreshing the
// cached handle for loc's epoch as needed. A missing log file
// (compacted away between index resolve and open) surfaces as
// fs.ErrNotExist for the caller to retry against the current index.
func (rc *readerCache) readAt(loc location) ([]byte, error) {
	slot := &rc.slots[loc.epoch%2]

	if slot.file == nil || slot.epoch != loc.epoch {
		if slot.file != nil {
			slot.file.Close()
			slot.file = nil
		}
		file, err := os.Open(logPath(rc.dir, loc.epoch))
		if err != nil {
			return nil, err
		}
		slot.file = file
		slot.epoch = loc.epoch
	}

	buf := make([]byte, loc.length)
	if _, err := slot.file.ReadAt(buf, loc.offset); err != nil {
		slot.file.Close()
		slot.file = nil
		return nil, err
	}
	return buf, nil
}

func (rc *readerCache) close() {
	for i := range rc.slots {
		if rc.slots[i].file != nil {
			rc.slots[i].file.Close()
			rc.slots[i].file = nil
		}
	}
}
