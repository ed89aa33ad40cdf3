package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JSONLogger appends audit rows to a per-day JSON Lines file. Each row is a
// single JSON object mapping the header columns to their values, plus a
// timestamp field. Shares the flush policy of CSVLogger.
type JSONLogger struct {
	file       *os.File
	writer     *bufio.Writer
	columns    []string
	rowCount   int
	lastFlush  time.Time
	flushEvery int
}

// NewJSONLogger creates a JSON Lines logger for the given tool and action.
// Filename pattern: %TEMP%/_{toolName}_{action}_{date}.jsonl
func NewJSONLogger(toolName, action string) (*JSONLogger, error) {
	tempDir := os.TempDir()

	dateStr := time.Now().Format("2006-01-02")
	fileName := fmt.Sprintf("_%s_%s_%s.jsonl", toolName, action, dateStr)
	filePath := filepath.Join(tempDir, fileName)

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not create JSON log file: %w", err)
	}

	logger := &JSONLogger{
		file:       file,
		writer:     bufio.NewWriter(file),
		lastFlush:  time.Now(),
		flushEvery: 10,
	}

	fmt.Fprintf(os.Stderr, "Logging to: %s\n\n", filePath)
	return logger, nil
}

// WriteHeader records the column names used as JSON keys for subsequent rows.
// Unlike CSV, no line is written; the keys appear inline in every row.
func (l *JSONLogger) WriteHeader(columns []string) error {
	l.columns = columns
	return nil
}

// WriteRow writes one JSON object line. The row length must match the header
// written earlier, and a timestamp field is always included.
func (l *JSONLogger) WriteRow(row []string) error {
	if l.writer == nil {
		return fmt.Errorf("JSON writer is not initialized")
	}
	if l.columns == nil {
		return fmt.Errorf("WriteHeader must be called before WriteRow")
	}
	if len(row) != len(l.columns) {
		return fmt.Errorf("row has %d values but header has %d columns", len(row), len(l.columns))
	}

	entry := make(map[string]string, len(row)+1)
	entry["timestamp"] = time.Now().Format("2006-01-02 15:04:05")
	for i, col := range l.columns {
		entry[col] = row[i]
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON row: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON row: %w", err)
	}

	l.rowCount++

	if l.rowCount%l.flushEvery == 0 || time.Since(l.lastFlush) > 5*time.Second {
		if err := l.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush JSON log: %w", err)
		}
		l.lastFlush = time.Now()
	}

	return nil
}

// Close flushes any buffered rows and closes the file.
func (l *JSONLogger) Close() error {
	if l.writer != nil {
		if err := l.writer.Flush(); err != nil {
			return fmt.Errorf("error flushing JSON log on close: %w", err)
		}
	}
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.writer = nil
		return err
	}
	return nil
}

// ShouldWriteHeader reports whether the underlying file is empty. For JSON
// Lines no header row exists, but callers use this to mirror the CSV flow.
func (l *JSONLogger) ShouldWriteHeader() (bool, error) {
	fileInfo, err := l.file.Stat()
	if err != nil {
		return false, fmt.Errorf("could not stat JSON log file: %w", err)
	}
	return fileInfo.Size() == 0, nil
}
