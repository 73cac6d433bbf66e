package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Export streams every event from sequence from onward as zstd-compressed
// JSON lines, the bulk format indexers ingest.
func (l *Log) Export(w io.Writer, from uint64) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer:\n%w", err)
	}

	buffered := bufio.NewWriter(encoder)

	events, err := l.Range(from, 0)
	if err != nil {
		encoder.Close()
		return fmt.Errorf("read events:\n%w", err)
	}

	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			encoder.Close()
			return fmt.Errorf("marshal event %d:\n%w", event.Seq, err)
		}

		buffered.Write(line)
		buffered.WriteByte('\n')
	}

	if err := buffered.Flush(); err != nil {
		encoder.Close()
		return fmt.Errorf("flush export:\n%w", err)
	}

	return encoder.Close()
}

// ReadExport decodes a zstd-compressed export stream back into events.
// Indexer-side counterpart of Export, also used by tests.
func ReadExport(r io.Reader) ([]Event, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader:\n%w", err)
	}
	defer decoder.Close()

	var events []Event

	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("decode export line:\n%w", err)
		}

		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export:\n%w", err)
	}

	return events, nil
}
