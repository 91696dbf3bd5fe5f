package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicware/clinic-sync/pkg/cache"
	"github.com/clinicware/clinic-sync/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyStore counts writes so tests can assert that cache and default
// stages never persist anything.
type spyStore struct {
	*cache.MemoryStore
	sets int
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: cache.NewMemory()}
}

func (s *spyStore) Set(key, value string) error {
	s.sets++
	return s.MemoryStore.Set(key, value)
}

func fetchReturning(v interface{}) FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		return v, nil
	}
}

func fetchFailing() FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("connection refused")
	}
}

func TestLoadRemoteArray(t *testing.T) {
	store := newSpyStore()
	ldr := New(store, nil)

	fetch := fetchReturning([]interface{}{
		map[string]interface{}{"id": "1", "name": "Ayşe Kaya"},
		map[string]interface{}{"id": "2", "name": "Mehmet Demir"},
	})

	records := ldr.Load(context.Background(), fetch, "clinic_patients", nil)

	require.Len(t, records, 2)
	assert.Equal(t, "Ayşe Kaya", records[0]["name"])
	assert.Equal(t, 1, store.sets, "remote success must write the cache exactly once")

	cached, err := store.Get("clinic_patients")
	require.NoError(t, err)
	assert.Contains(t, cached, "Ayşe Kaya")
}

func TestLoadRemoteEnvelope(t *testing.T) {
	ldr := New(newSpyStore(), nil)

	fetch := fetchReturning(map[string]interface{}{
		"data": []interface{}{
			map[string]interface{}{"id": "1", "name": "Ayşe Kaya"},
		},
	})

	records := ldr.Load(context.Background(), fetch, "clinic_patients", nil)

	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0]["id"])
}

func TestLoadRemoteNestedEnvelope(t *testing.T) {
	ldr := New(newSpyStore(), nil)

	fetch := fetchReturning(map[string]interface{}{
		"data": map[string]interface{}{
			"success": true,
			"data": []interface{}{
				map[string]interface{}{"id": "pf-1", "name": "Quote"},
			},
		},
	})

	records := ldr.Load(context.Background(), fetch, "clinic_proformas", nil)

	require.Len(t, records, 1)
	assert.Equal(t, "pf-1", records[0]["id"])
}

func TestLoadNormalizesNames(t *testing.T) {
	ldr := New(newSpyStore(), nil)

	fetch := fetchReturning([]interface{}{
		map[string]interface{}{"firstName": "Ayşe", "lastName": "Kaya"},
	})

	records := ldr.Load(context.Background(), fetch, "clinic_patients", nil)

	require.Len(t, records, 1)
	assert.Equal(t, "Ayşe Kaya", records[0]["name"])
	assert.NotEmpty(t, records[0]["id"], "normalization assigns an id when none is present")
}

func TestLoadRemoteFailureUsesCache(t *testing.T) {
	store := newSpyStore()
	require.NoError(t, store.MemoryStore.Set("clinic_patients", `[{"id":"x"}]`))
	store.sets = 0

	ldr := New(store, nil)
	records := ldr.Load(context.Background(), fetchFailing(), "clinic_patients", nil)

	require.Len(t, records, 1)
	assert.Equal(t, record.Record{"id": "x"}, records[0], "cached records are returned unmodified")
	assert.Zero(t, store.sets, "the cache stage must not write")
}

func TestLoadCachedRecordsNotNormalized(t *testing.T) {
	store := newSpyStore()
	require.NoError(t, store.MemoryStore.Set("clinic_patients", `[{"firstName":"Ayşe","lastName":"Kaya"}]`))

	ldr := New(store, nil)
	records := ldr.Load(context.Background(), nil, "clinic_patients", nil)

	require.Len(t, records, 1)
	_, hasName := records[0]["name"]
	assert.False(t, hasName, "cache hits bypass normalization")
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	defaults := []record.Record{{"id": "seed-1", "name": "Seed"}}

	cases := []struct {
		name   string
		cached string
	}{
		{"empty cache", ""},
		{"malformed JSON", "not json"},
		{"empty array", "[]"},
		{"JSON object", `{"id":"x"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newSpyStore()
			if tc.cached != "" {
				require.NoError(t, store.MemoryStore.Set("clinic_patients", tc.cached))
			}
			store.sets = 0

			ldr := New(store, nil)
			records := ldr.Load(context.Background(), fetchFailing(), "clinic_patients", defaults)

			assert.Equal(t, defaults, records, "defaults are returned exactly")
			assert.Zero(t, store.sets, "the defaults stage must not write")
		})
	}
}

func TestLoadWithoutFetchUsesCache(t *testing.T) {
	store := newSpyStore()
	require.NoError(t, store.MemoryStore.Set("clinic_sales", `[{"id":"s-1"}]`))

	ldr := New(store, nil)
	records := ldr.Load(context.Background(), nil, "clinic_sales", nil)

	require.Len(t, records, 1)
	assert.Equal(t, "s-1", records[0]["id"])
}

func TestLoadNeverReturnsNil(t *testing.T) {
	ldr := New(newSpyStore(), nil)

	records := ldr.Load(context.Background(), nil, "clinic_patients", nil)

	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestLoadRecoversFetchPanic(t *testing.T) {
	defaults := []record.Record{{"id": "seed-1"}}
	ldr := New(newSpyStore(), nil)

	panicking := func(ctx context.Context) (interface{}, error) {
		panic("boom")
	}

	var records []record.Record
	assert.NotPanics(t, func() {
		records = ldr.Load(context.Background(), panicking, "clinic_patients", defaults)
	})
	assert.Equal(t, defaults, records)
}

func TestLoadRemoteNonArrayFallsThrough(t *testing.T) {
	store := newSpyStore()
	require.NoError(t, store.MemoryStore.Set("clinic_patients", `[{"id":"cached"}]`))

	ldr := New(store, nil)
	fetch := fetchReturning(map[string]interface{}{"error": "maintenance"})

	records := ldr.Load(context.Background(), fetch, "clinic_patients", nil)

	require.Len(t, records, 1)
	assert.Equal(t, "cached", records[0]["id"])
}

func TestLoadKindUsesBuiltInDefaults(t *testing.T) {
	ldr := New(newSpyStore(), nil)

	records := ldr.LoadKind(context.Background(), record.KindPatients, nil)

	assert.Equal(t, record.DefaultPatients(), records)
}

func TestExtractRecords(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int
		ok    bool
	}{
		{"nil", nil, 0, false},
		{"raw array", []interface{}{map[string]interface{}{"id": "1"}}, 1, true},
		{"typed records", []record.Record{{"id": "1"}, {"id": "2"}}, 2, true},
		{"map slice", []map[string]interface{}{{"id": "1"}}, 1, true},
		{"envelope", map[string]interface{}{"data": []interface{}{map[string]interface{}{"id": "1"}}}, 1, true},
		{"nested envelope", map[string]interface{}{"data": map[string]interface{}{"success": true, "data": []interface{}{map[string]interface{}{"id": "1"}}}}, 1, true},
		{"envelope without data", map[string]interface{}{"records": []interface{}{}}, 0, false},
		{"scalar", 42, 0, false},
		{"array with scalars dropped", []interface{}{map[string]interface{}{"id": "1"}, "junk", 3}, 1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, ok := ExtractRecords(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Len(t, records, tc.want)
		})
	}
}
