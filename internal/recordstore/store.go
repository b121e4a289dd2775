// Package recordstore loads and persists JSON-lines record sets. The output
// file doubles as the resume checkpoint: its existence, and which records
// carry a result field, is the whole persisted state of a run.
package recordstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/kurihiro0119/github-issue-insights/internal/errors"
	"github.com/kurihiro0119/github-issue-insights/internal/record"
)

// maxLineSize bounds a single JSON line; issue bodies with long comment
// threads exceed bufio's 64KiB default.
const maxLineSize = 16 * 1024 * 1024

// FailureSuffix names the per-record failure counter kept next to a result field
const FailureSuffix = "_failures"

// Load reads prior progress from outputPath when it exists, otherwise the
// fresh input. A malformed line aborts the whole load.
func Load(inputPath, outputPath string) ([]*record.Record, bool, error) {
	if outputPath != "" {
		if _, err := os.Stat(outputPath); err == nil {
			records, err := ReadRecords(outputPath)
			if err != nil {
				return nil, false, err
			}
			return records, true, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, apperrors.NewIOError("stat "+outputPath, err)
		}
	}

	records, err := ReadRecords(inputPath)
	if err != nil {
		return nil, false, err
	}
	return records, false, nil
}

// ReadRecords reads every record in a JSON-lines file
func ReadRecords(path string) ([]*record.Record, error) {
	var records []*record.Record
	err := ReadJSONL(path, func(line []byte) error {
		r := record.New()
		if err := r.UnmarshalJSON(line); err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadJSONL calls fn for every non-blank line. Open failures are IO_ERROR;
// an fn error is reported as a PARSE_ERROR with file and line number.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewIOError("open "+path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return apperrors.NewParseError(fmt.Sprintf("%s:%d", path, lineNo), err)
		}
	}
	if err := scanner.Err(); err != nil {
		return apperrors.NewIOError("read "+path, err)
	}
	return nil
}

// DecodeJSONL reads a JSON-lines file into a typed slice
func DecodeJSONL[T any](path string) ([]T, error) {
	var out []T
	err := ReadJSONL(path, func(line []byte) error {
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// Persist atomically replaces outputPath with the full record set
func Persist(records []*record.Record, outputPath string) error {
	return WriteJSONL(outputPath, len(records), func(i int) (interface{}, error) {
		return records[i], nil
	})
}

// WriteJSONL atomically writes n values, one per line. The data goes to a
// temporary file in the same directory that is synced and then renamed over
// path, so readers see either the old or the new file, never a torn one.
func WriteJSONL(path string, n int, value func(i int) (interface{}, error)) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewIOError("create "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return apperrors.NewIOError("create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := encodeLines(w, n, value); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return apperrors.NewIOError("write "+tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperrors.NewIOError("sync "+tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewIOError("close "+tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.NewIOError("rename onto "+path, err)
	}
	committed = true
	return nil
}

// AppendJSONL appends one value as a line, creating the file if needed
func AppendJSONL(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.NewIOError("create "+filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperrors.NewIOError("open "+path, err)
	}
	defer f.Close()

	line, err := marshalLine(v)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return apperrors.NewIOError("append "+path, err)
	}
	return nil
}

func encodeLines(w io.Writer, n int, value func(i int) (interface{}, error)) error {
	for i := 0; i < n; i++ {
		v, err := value(i)
		if err != nil {
			return err
		}
		line, err := marshalLine(v)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return apperrors.NewIOError("write line", err)
		}
	}
	return nil
}

// marshalLine encodes without HTML escaping so issue text stays readable
func marshalLine(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, apperrors.NewInternalError("encode record", err)
	}
	return buf.Bytes(), nil
}
