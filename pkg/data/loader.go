package data

import (
	"bufio"
	"encoding/csv"
	"io"
	"log/slog"
	"os"

	"mochi/pkg/synth"
)

// StreamCSV streams records from a dataset file through out. Malformed rows
// are logged and skipped. Close the returned done channel to stop early; out
// is closed when streaming ends either way.
func StreamCSV(path string, logger *slog.Logger, out chan<- synth.Record) (done chan struct{}, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bufio.NewReader(file))
	reader.FieldsPerRecord = -1
	head, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := checkHeader(head); err != nil {
		file.Close()
		return nil, err
	}
	reader.ReuseRecord = true
	done = make(chan struct{})

	go func() {
		defer file.Close()
		defer close(out)
		line := 1
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			line++
			if err != nil {
				logger.Warn("skipping unreadable row", "path", path, "line", line, "error", err)
				continue
			}
			if len(rec) != len(Header) {
				logger.Warn("skipping row with wrong column count", "path", path, "line", line, "columns", len(rec))
				continue
			}
			r, err := fromRow(rec)
			if err != nil {
				logger.Warn("skipping malformed row", "path", path, "line", line, "error", err)
				continue
			}
			select {
			case <-done:
				return
			case out <- r:
			}
		}
	}()
	return done, nil
}
