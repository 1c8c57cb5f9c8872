package docstore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mesh-intelligence/paizhu/internal/fsutil"
)

// maxLineSize bounds one JSONL record; attachment-heavy logs can be large.
const maxLineSize = 16 << 20

// readJSONL returns each non-empty, parseable line of path. Malformed lines
// are skipped. A missing file reads as empty.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically replaces path with one JSON document per line.
func writeJSONL[T any](path string, records []T) error {
	return fsutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
		}
		return nil
	})
}
