package wal

import (
	"fmt"
	"io"
)

// Replay reads the log strictly in append order and invokes callback for each
// complete entry. It returns the number of entries replayed.
//
// A malformed, truncated or checksum-failing trailing record (e.g. the
// process crashed mid-write) is treated as the true end of the log: replay
// stops there without error and the recovered prefix stands. A callback
// error aborts replay immediately and is returned to the caller.
//
// Replay never appends to the log; the file position is restored to the end
// so subsequent appends continue where the log left off.
func (w *WAL) Replay(callback func(entry Entry) error) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(w.dataOffset, io.SeekStart); err != nil {
		return 0, err
	}

	reader, err := w.entryReader()
	if err != nil {
		return 0, err
	}

	replayed := 0

	for {
		var entry Entry
		if err := decodeEntry(reader, &entry); err != nil {
			// io.EOF is a clean end; anything else is a torn tail and the
			// complete prefix read so far is the recovered state.
			break
		}

		if err := callback(entry); err != nil {
			return replayed, fmt.Errorf("failed to replay entry %d: %w", entry.SeqNum, err)
		}
		replayed++
	}

	// Seek back to end for appending
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return replayed, err
	}

	return replayed, nil
}
