package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Record represents a single CRM record (patient, sale or proforma).
// The upstream CRM does not enforce a schema, so fields are accessed
// defensively through alias lists rather than struct tags.
type Record map[string]interface{}

// Kind identifies a record type and selects its cache key, API path
// and built-in defaults.
type Kind string

const (
	KindPatients  Kind = "patients"
	KindSales     Kind = "sales"
	KindProformas Kind = "proformas"
)

// Cache keys per record kind. The literal values are shared with the
// browser UI, which reads the same storage keys.
const (
	CacheKeyPatients  = "clinic_patients"
	CacheKeyProformas = "clinic_proformas"
	CacheKeySales     = "clinic_sales"
)

// Kinds lists every record kind in sync order.
func Kinds() []Kind {
	return []Kind{KindPatients, KindSales, KindProformas}
}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPatients:
		return KindPatients, nil
	case KindSales:
		return KindSales, nil
	case KindProformas:
		return KindProformas, nil
	default:
		return "", fmt.Errorf("unknown record kind: %q (expected patients, sales or proformas)", s)
	}
}

// CacheKey returns the cache storage key for the kind.
func (k Kind) CacheKey() string {
	switch k {
	case KindSales:
		return CacheKeySales
	case KindProformas:
		return CacheKeyProformas
	default:
		return CacheKeyPatients
	}
}

// Field alias lists, ordered by precedence. The first alias present with a
// non-empty value wins. The ordering mirrors the upstream CRM payloads:
// camelCase API fields first, then snake_case, then legacy Turkish names.
var (
	idAliases        = []string{"id", "_id", "recordId", "record_id"}
	nameAliases      = []string{"name", "fullName", "full_name", "adSoyad"}
	firstNameAliases = []string{"firstName", "first_name", "ad"}
	lastNameAliases  = []string{"lastName", "last_name", "soyad"}
)

// String resolves the first alias present in r whose value renders to a
// non-empty string. Returns "" when no alias matches.
func String(r Record, aliases ...string) string {
	for _, key := range aliases {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s != "" {
			return s
		}
	}
	return ""
}

// Number resolves the first alias present in r that carries a numeric
// value. String values are parsed; anything unparseable is skipped.
// Returns 0 and false when no alias matches.
func Number(r Record, aliases ...string) (float64, bool) {
	for _, key := range aliases {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			s := strings.TrimSpace(n)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// ID returns the record's identifier, or "" if none of the id aliases
// are present.
func ID(r Record) string {
	return String(r, idAliases...)
}

// DisplayName returns the record's display name, deriving it from the
// first/last name aliases when no explicit name field is set.
func DisplayName(r Record) string {
	if name := String(r, nameAliases...); name != "" {
		return name
	}
	first := String(r, firstNameAliases...)
	last := String(r, lastNameAliases...)
	return strings.TrimSpace(first + " " + last)
}

// Normalize fills in the canonical fields the UI depends on: a display
// "name" derived from the name aliases and an "id" (generated when the
// record carries no identifier at all). The input record is modified in
// place and returned. Calling Normalize twice is a no-op.
func Normalize(r Record) Record {
	if r == nil {
		return Record{}
	}
	if String(r, "name") == "" {
		if name := DisplayName(r); name != "" {
			r["name"] = name
		}
	}
	if ID(r) == "" {
		r["id"] = uuid.NewString()
	}
	return r
}

// NormalizeAll normalizes every record in the list. A nil list yields an
// empty, non-nil list.
func NormalizeAll(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, Normalize(r))
	}
	return out
}
