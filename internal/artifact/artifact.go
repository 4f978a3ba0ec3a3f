// Package artifact reads and writes the JSON documents stages exchange
// through object storage.
package artifact

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Read loads loc and decodes it into dst. Gzip content is detected by its
// magic bytes so callers need not know whether a stage compressed it.
func Read(ctx context.Context, store objstore.Store, loc objstore.Location, dst interface{}) error {
	data, err := ReadBytes(ctx, store, loc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", loc, err)
	}
	return nil
}

func ReadBytes(ctx context.Context, store objstore.Store, loc objstore.Location) ([]byte, error) {
	rc, err := store.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	if bytes.HasPrefix(data, gzipMagic) {
		data, err = Gunzip(data)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", loc, err)
		}
	}
	return data, nil
}

func WriteJSON(ctx context.Context, store objstore.Store, loc objstore.Location, v interface{}) (int, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", loc, err)
	}
	if err := store.Put(ctx, loc, data, objstore.PutOptions{ContentType: "application/json"}); err != nil {
		return 0, err
	}
	return len(data), nil
}

// WriteGzipJSON stores v as compact, gzip-compressed JSON and returns the raw
// and compressed sizes.
func WriteGzipJSON(ctx context.Context, store objstore.Store, loc objstore.Location, v interface{}) (int, int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, 0, fmt.Errorf("encode %s: %w", loc, err)
	}
	compressed, err := Gzip(data)
	if err != nil {
		return 0, 0, fmt.Errorf("compress %s: %w", loc, err)
	}
	err = store.Put(ctx, loc, compressed, objstore.PutOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
	})
	if err != nil {
		return 0, 0, err
	}
	return len(data), len(compressed), nil
}

func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// EncodeLines renders items as newline-delimited JSON.
func EncodeLines[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeLines calls fn for every non-blank line of r. A line that does not
// decode is passed to onErr and skipped; a nil onErr makes it fatal.
func DecodeLines[T any](r io.Reader, fn func(T) error, onErr func(line int, err error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			if onErr == nil {
				return fmt.Errorf("decode line %d: %w", lineNo, err)
			}
			onErr(lineNo, err)
			continue
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return scanner.Err()
}
