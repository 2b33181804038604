package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/shamaton/msgpack/v2"
)

// diskRecord is the on-disk form of an Entry. Payload is lz4
// block-compressed unless Raw is set (incompressible input).
type diskRecord struct {
	Fingerprint uint64
	Payload     []byte
	RawSize     int
	Raw         bool
	CreatedAt   int64 // unix nanoseconds
}

// DiskStore is an append-only, durable Store. Every Put appends one
// length-prefixed record and fsyncs before returning, so a crash
// immediately after a returned Put cannot lose the entry. Opening replays
// the log into memory; a torn final record (crash mid-append) is truncated
// away.
type DiskStore struct {
	mu      sync.RWMutex
	f       *os.File
	entries map[Fingerprint]*Entry
	closed  bool
}

// OpenDiskStore opens or creates the cache log at path and replays it.
func OpenDiskStore(path string) (*DiskStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	s := &DiskStore{f: f, entries: make(map[Fingerprint]*Entry)}
	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) replay() error {
	var offset int64
	lenBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(s.f, lenBuf); err != nil {
			if err == io.EOF {
				return nil
			}
			// Partial length prefix: crash mid-append, drop the tail.
			return s.truncateAt(offset)
		}
		recLen := binary.LittleEndian.Uint32(lenBuf)

		payload := make([]byte, recLen)
		if _, err := io.ReadFull(s.f, payload); err != nil {
			return s.truncateAt(offset)
		}

		var rec diskRecord
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return s.truncateAt(offset)
		}
		offset += int64(4 + recLen)

		fp := Fingerprint(rec.Fingerprint)
		if _, ok := s.entries[fp]; ok {
			// Entries are immutable; keep the first record.
			continue
		}
		result, err := rec.decode()
		if err != nil {
			return fmt.Errorf("cache: decode record %x: %w", rec.Fingerprint, err)
		}
		s.entries[fp] = &Entry{
			Fingerprint: fp,
			Result:      result,
			CreatedAt:   time.Unix(0, rec.CreatedAt),
		}
	}
}

func (s *DiskStore) truncateAt(offset int64) error {
	if err := s.f.Truncate(offset); err != nil {
		return fmt.Errorf("cache: truncate torn tail: %w", err)
	}
	_, err := s.f.Seek(offset, io.SeekStart)
	return err
}

func (rec *diskRecord) decode() (string, error) {
	if rec.Raw {
		return string(rec.Payload), nil
	}
	out := make([]byte, rec.RawSize)
	n, err := lz4.UncompressBlock(rec.Payload, out)
	if err != nil {
		return "", err
	}
	return string(out[:n]), nil
}

func encodeRecord(fp Fingerprint, result string, createdAt time.Time) ([]byte, error) {
	rec := diskRecord{
		Fingerprint: uint64(fp),
		RawSize:     len(result),
		CreatedAt:   createdAt.UnixNano(),
	}

	src := []byte(result)
	compressed := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, compressed, nil)
	if err != nil || n == 0 || n >= len(src) {
		rec.Payload = src
		rec.Raw = true
	} else {
		rec.Payload = compressed[:n]
	}

	body, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(4 + len(body))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)
	return buf.Bytes(), nil
}

func (s *DiskStore) Get(fp Fingerprint) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := s.entries[fp]
	if !ok {
		return Entry{}, false, nil
	}
	e.Hits++
	return *e, true, nil
}

func (s *DiskStore) Put(fp Fingerprint, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.entries[fp]; ok {
		return nil
	}

	createdAt := time.Now()
	frame, err := encodeRecord(fp, result, createdAt)
	if err != nil {
		return fmt.Errorf("cache: encode record: %w", err)
	}
	if _, err := s.f.Write(frame); err != nil {
		return fmt.Errorf("cache: append record: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("cache: sync: %w", err)
	}

	s.entries[fp] = &Entry{Fingerprint: fp, Result: result, CreatedAt: createdAt}
	return nil
}

func (s *DiskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
