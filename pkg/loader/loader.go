// Package loader implements the resilient data-loading chain shared by
// every record kind: remote API first, local cache second, built-in
// defaults last. The chain short-circuits on the first stage that
// produces records and never surfaces an error to the caller — each
// stage degrades to the next, and the defaults stage cannot fail.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/clinicware/clinic-sync/pkg/cache"
	"github.com/clinicware/clinic-sync/pkg/record"
)

// FetchFunc fetches records from the remote CRM API. The result may be a
// raw record array, a {data: [...]} envelope, or the nested
// {data: {success, data: [...]}} envelope some endpoints return.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Loader runs the remote-cache-defaults chain against a cache store.
type Loader struct {
	store  cache.Store
	logger *log.Logger
}

// New creates a Loader backed by store. A nil logger uses the standard
// logger.
func New(store cache.Store, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{store: store, logger: logger}
}

// Load produces a best-effort record list, in strict precedence order:
//
//  1. fetch (when non-nil): on success the records are normalized,
//     persisted to the cache under cacheKey, and returned.
//  2. the cache under cacheKey: a non-empty stored array is returned
//     as-is, without normalization and without writing.
//  3. defaults, returned verbatim (nil defaults become an empty list).
//
// Load never returns nil and never returns an error: remote failures,
// fetch panics, malformed cache JSON and empty cached arrays all fall
// through to the next stage.
func (l *Loader) Load(ctx context.Context, fetch FetchFunc, cacheKey string, defaults []record.Record) []record.Record {
	if records, ok := l.loadRemote(ctx, fetch, cacheKey); ok {
		return records
	}
	if records, ok := l.loadCached(cacheKey); ok {
		return records
	}
	if defaults == nil {
		return []record.Record{}
	}
	return defaults
}

// LoadKind loads a record kind using its cache key and built-in defaults.
func (l *Loader) LoadKind(ctx context.Context, kind record.Kind, fetch FetchFunc) []record.Record {
	return l.Load(ctx, fetch, kind.CacheKey(), record.Defaults(kind))
}

// loadRemote runs stage 1. The fetch call is isolated behind a recover
// so a panicking fetch implementation degrades to a remote-miss instead
// of taking the process down.
func (l *Loader) loadRemote(ctx context.Context, fetch FetchFunc, cacheKey string) ([]record.Record, bool) {
	if fetch == nil {
		return nil, false
	}

	result, err := callFetch(ctx, fetch)
	if err != nil {
		l.logger.Printf("⚠️  Remote fetch failed for %s: %v (falling back to cache)", cacheKey, err)
		return nil, false
	}

	records, ok := ExtractRecords(result)
	if !ok {
		l.logger.Printf("⚠️  Remote response for %s has no record array (falling back to cache)", cacheKey)
		return nil, false
	}

	normalized := record.NormalizeAll(records)
	l.persist(cacheKey, normalized)
	return normalized, true
}

// loadCached runs stage 2. Any stored value that does not parse to a
// non-empty record array counts as a miss.
func (l *Loader) loadCached(cacheKey string) ([]record.Record, bool) {
	if l.store == nil {
		return nil, false
	}

	raw, err := l.store.Get(cacheKey)
	if err != nil {
		if err != cache.ErrNotFound {
			l.logger.Printf("⚠️  Cache read failed for %s: %v", cacheKey, err)
		}
		return nil, false
	}

	var records []record.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		l.logger.Printf("⚠️  Cache entry for %s is not a record array, ignoring", cacheKey)
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}

// persist writes the normalized list to the cache. A write failure is
// logged and swallowed: the caller already has the records.
func (l *Loader) persist(cacheKey string, records []record.Record) {
	if l.store == nil {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		l.logger.Printf("⚠️  Failed to encode records for %s: %v", cacheKey, err)
		return
	}
	if err := l.store.Set(cacheKey, string(data)); err != nil {
		l.logger.Printf("⚠️  Failed to cache records for %s: %v", cacheKey, err)
	}
}

// callFetch invokes fetch, converting a panic into an error.
func callFetch(ctx context.Context, fetch FetchFunc) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// ExtractRecords unwraps a remote response into a record list. Accepted
// shapes, tried in order:
//
//   - a record array ([]record.Record, []map[string]interface{} or a
//     JSON-decoded []interface{} of objects)
//   - an envelope object whose "data" field holds one of the above
//   - a nested envelope: {"data": {"success": ..., "data": [...]}}
//
// Non-object array elements are dropped rather than failing the whole
// response.
func ExtractRecords(v interface{}) ([]record.Record, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []record.Record:
		return t, true
	case []map[string]interface{}:
		records := make([]record.Record, 0, len(t))
		for _, m := range t {
			records = append(records, record.Record(m))
		}
		return records, true
	case []interface{}:
		records := make([]record.Record, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				records = append(records, record.Record(m))
			}
		}
		return records, true
	case map[string]interface{}:
		if inner, ok := t["data"]; ok {
			return ExtractRecords(inner)
		}
		return nil, false
	case record.Record:
		if inner, ok := t["data"]; ok {
			return ExtractRecords(inner)
		}
		return nil, false
	default:
		return nil, false
	}
}
