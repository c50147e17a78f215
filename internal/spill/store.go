package spill

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/docker/docker/pkg/locker"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Codec selects the compression applied to spilled blobs
type Codec int

const (
	// LZ4 favours speed, and is the default
	LZ4 Codec = iota
	// Zstd favours ratio
	Zstd
)

// String returns a textual representation of this Codec
func (c Codec) String() string {
	switch c {
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

// Config configures a Store
type Config struct {
	Codec Codec
	Dir   string // if empty, compressed blobs are kept in memory
}

// Store holds compressed, serialized partial summaries grouped by key until they are taken back.
// Appends and Takes on different keys may proceed concurrently.
type Store struct {
	config       *Config
	keyLocks     *locker.Locker
	entriesLock  sync.Mutex
	entries      map[string]*entry
	encoder      *zstd.Encoder
	decoder      *zstd.Decoder
	statsLock    sync.Mutex
	spilledBytes int
	blobs        int
	closed       bool
}

type entry struct {
	blobs [][]byte // compressed, in memory
	files []string // compressed, on disk
}

// New produces an empty Store
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	s := &Store{
		config:   config,
		keyLocks: locker.New(),
		entries:  make(map[string]*entry),
	}
	switch config.Codec {
	case LZ4:
	case Zstd:
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("unable to initialize compressor: %w", err)
		}
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize decompressor: %w", err)
		}
		s.encoder = encoder
		s.decoder = decoder
	default:
		return nil, fmt.Errorf("unknown spill codec %s", config.Codec)
	}
	if config.Dir != "" {
		if err := os.MkdirAll(config.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create spill directory %s: %w", config.Dir, err)
		}
	}
	return s, nil
}

// Append compresses data and files it under key
func (s *Store) Append(key string, data []byte) error {
	compressed, err := s.compress(data)
	if err != nil {
		return err
	}
	s.keyLocks.Lock(key)
	defer s.keyLocks.Unlock(key)

	e, err := s.entry(key, true)
	if err != nil {
		return err
	}
	if s.config.Dir == "" {
		e.blobs = append(e.blobs, compressed)
	} else {
		fileName := path.Join(s.config.Dir, fmt.Sprintf("%016x-%d.spill", xxhash.Sum64String(key), len(e.files)))
		if err := os.WriteFile(fileName, compressed, 0o600); err != nil {
			return fmt.Errorf("unable to spill %s to disk: %w", key, err)
		}
		e.files = append(e.files, fileName)
	}
	s.statsLock.Lock()
	s.spilledBytes += len(compressed)
	s.blobs++
	s.statsLock.Unlock()
	return nil
}

// Keys returns every key with at least one blob, in sorted order
func (s *Store) Keys() []string {
	s.entriesLock.Lock()
	defer s.entriesLock.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Take removes every blob filed under key and returns them decompressed, in the order they were appended
func (s *Store) Take(key string) ([][]byte, error) {
	s.keyLocks.Lock(key)
	defer s.keyLocks.Unlock(key)

	e, err := s.entry(key, false)
	if err != nil || e == nil {
		return nil, err
	}
	s.entriesLock.Lock()
	delete(s.entries, key)
	s.entriesLock.Unlock()

	result := make([][]byte, 0, len(e.blobs)+len(e.files))
	for _, blob := range e.blobs {
		data, err := s.decompress(blob)
		if err != nil {
			return nil, fmt.Errorf("unable to decompress spilled %s: %w", key, err)
		}
		result = append(result, data)
	}
	for i, fileName := range e.files {
		blob, err := os.ReadFile(fileName)
		if err != nil {
			removeFiles(e.files[i:])
			return nil, fmt.Errorf("unable to load spilled %s: %w", key, err)
		}
		if err := os.Remove(fileName); err != nil {
			return nil, fmt.Errorf("unable to remove spill file %s: %w", fileName, err)
		}
		data, err := s.decompress(blob)
		if err != nil {
			removeFiles(e.files[i+1:])
			return nil, fmt.Errorf("unable to decompress spilled %s: %w", key, err)
		}
		result = append(result, data)
	}
	return result, nil
}

// SpilledBytes returns the total compressed size of every blob ever appended
func (s *Store) SpilledBytes() int {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	return s.spilledBytes
}

// NumBlobs returns the number of blobs ever appended
func (s *Store) NumBlobs() int {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	return s.blobs
}

// Close drops every remaining blob and removes any spill files. The Store cannot be used afterwards.
func (s *Store) Close() error {
	s.entriesLock.Lock()
	defer s.entriesLock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for key, e := range s.entries {
		for _, fileName := range e.files {
			if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
		delete(s.entries, key)
	}
	if s.encoder != nil {
		s.encoder.Close()
		s.decoder.Close()
	}
	return firstErr
}

func (s *Store) entry(key string, create bool) (*entry, error) {
	s.entriesLock.Lock()
	defer s.entriesLock.Unlock()
	if s.closed {
		return nil, fmt.Errorf("spill store is closed")
	}
	e, ok := s.entries[key]
	if !ok && create {
		e = &entry{}
		s.entries[key] = e
	}
	return e, nil
}

func (s *Store) compress(data []byte) ([]byte, error) {
	if s.config.Codec == Zstd {
		return s.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	}
	buf := new(bytes.Buffer)
	w := lz4.NewWriter(buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("unable to compress spill data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to compress spill data: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Store) decompress(blob []byte) ([]byte, error) {
	if s.config.Codec == Zstd {
		return s.decoder.DecodeAll(blob, nil)
	}
	return io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
}

func removeFiles(fileNames []string) {
	for _, fileName := range fileNames {
		os.Remove(fileName)
	}
}
