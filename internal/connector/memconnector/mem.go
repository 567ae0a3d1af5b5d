// Package memconnector provides an in-memory connector implementation for testing.
package memconnector

import (
	"bytes"
	"context"
	"io"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/layout"
)

// Compile-time check that Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// Connector is an in-memory connector for testing.
type Connector struct {
	connector.Base

	mu      sync.RWMutex
	objects map[string][]byte
	listErr error
	opens   map[string]int
}

// New creates a new in-memory connector.
func New(cfg connector.Config) (*Connector, error) {
	base, err := connector.NewBase("memory", cfg)
	if err != nil {
		return nil, err
	}
	return &Connector{
		Base:    base,
		objects: make(map[string][]byte),
		opens:   make(map[string]int),
	}, nil
}

// Put stores data as the file at c (for test setup).
// The data is copied to prevent caller mutations from affecting the connector.
func (m *Connector) Put(c layout.Coordinate, data []byte) {
	m.PutKey(m.Layout().Key(c), data)
}

// PutKey stores data under an arbitrary key, which need not follow the
// layout.
func (m *Connector) PutKey(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(data)
}

// Delete removes the object stored under key.
func (m *Connector) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

// FailListing makes subsequent listings fail with err. A nil err restores
// normal listing.
func (m *Connector) FailListing(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// Opens returns how many times the object under key was opened.
func (m *Connector) Opens(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens[key]
}

// TotalOpens returns how many streams were opened across all objects.
func (m *Connector) TotalOpens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int
	for _, v := range m.opens {
		n += v
	}
	return n
}

// DataAfter lists the stored keys and returns the files after cp.
func (m *Connector) DataAfter(ctx context.Context, cp layout.Checkpoint) (iter.Seq[*datafile.File], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	m.mu.RLock()
	if err := m.listErr; err != nil {
		m.mu.RUnlock()
		return nil, connector.Unavailable(err)
	}
	keys := slices.Sorted(maps.Keys(m.objects))
	m.mu.RUnlock()
	m.ObserveList(start)

	return m.Files(m.Collect(slices.Values(keys)), cp, m.opener), nil
}

// Close is a no-op for the memory connector.
func (m *Connector) Close() error {
	return nil
}

func (m *Connector) opener(key string) datafile.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.opens[key]++
		data, ok := m.objects[key]
		if !ok {
			return nil, &notFoundError{key: key}
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

type notFoundError struct {
	key string
}

func (e *notFoundError) Error() string {
	return "memconnector: object not found: " + e.key
}
