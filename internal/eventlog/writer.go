// Package eventlog provides an append-only JSON-lines audit trail of
// simulation steps, for offline replay inspection.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Event is one recorded simulation step.
type Event struct {
	RunID     string     `json:"run_id"`
	Step      uint64     `json:"step"`
	Timestamp int64      `json:"timestamp"`
	Action    int        `json:"action"`
	Tag       string     `json:"tag,omitempty"`
	Fills     []FillView `json:"fills,omitempty"`
	Position  int64      `json:"position"`
	PnL       float64    `json:"pnl"`
}

// FillView mirrors domain.Fill without importing domain, keeping this
// package's only dependency the standard library.
type FillView struct {
	Ref    int64 `json:"ref"`
	Price  int64 `json:"price"`
	Shares int64 `json:"shares"`
}

// Writer appends Events as JSON lines to a file.
type Writer struct {
	file   *os.File
	writer *bufio.Writer
	count  uint64
}

// NewWriter creates a new event log writer at path, truncating any existing
// file there.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return &Writer{
		file:   f,
		writer: bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// Write appends one event to the log.
func (w *Writer) Write(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of events written so far.
func (w *Writer) Count() uint64 { return w.count }

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Reader reads Events back from a JSON-lines event log.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewReader opens an event log for reading.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), 1024*1024)
	return &Reader{file: f, scanner: scanner}, nil
}

// Next reads the next event, returning io.EOF once the log is exhausted.
func (r *Reader) Next() (*Event, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var event Event
	if err := json.Unmarshal(r.scanner.Bytes(), &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &event, nil
}

// Close closes the log file.
func (r *Reader) Close() error { return r.file.Close() }
