package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Patch is a partial record keyed by JSON field name. Nested objects merge
// recursively; scalars and arrays replace.
type Patch map[string]any

// protectedKeys are header fields a patch can never change.
var protectedKeys = map[string]bool{
	"id":            true,
	"user_id":       true,
	"createdAt":     true,
	"updatedAt":     true,
	"schemaVersion": true,
}

// ApplyPatch returns a copy of rec with patch merged in. The header keeps
// its identity fields; syncStatus changes only when the patch names a valid
// state. UpdatedAt is set to now. The merged record is normalized.
func ApplyPatch(rec Record, patch Patch, now time.Time) (Record, error) {
	base, err := toMap(rec)
	if err != nil {
		return nil, err
	}
	norm, err := toMap(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	for k, v := range norm {
		if protectedKeys[k] {
			continue
		}
		if k == "syncStatus" {
			s, ok := v.(string)
			if !ok || !SyncStatus(s).Valid() {
				return nil, invalidf("invalid syncStatus %v", v)
			}
		}
		base[k] = mergeValue(base[k], v)
	}

	data, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encoding merged record: %w", err)
	}
	out, err := NewRecord(rec.Kind())
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	h, orig := out.Head(), rec.Head()
	h.ID = orig.ID
	h.UserID = orig.UserID
	h.SchemaVersion = orig.SchemaVersion
	h.CreatedAt = orig.CreatedAt
	h.UpdatedAt = now.UTC()
	if h.SyncStatus == "" {
		h.SyncStatus = orig.SyncStatus
	}
	if err := out.Normalize(); err != nil {
		return nil, err
	}
	return out, nil
}

// SectionPatch builds a patch holding the current value of the named
// top-level fields of rec.
func SectionPatch(rec Record, keys ...string) (Patch, error) {
	m, err := toMap(rec)
	if err != nil {
		return nil, err
	}
	p := make(Patch, len(keys))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			p[k] = v
		}
	}
	return p, nil
}

// toMap round-trips v through JSON so every nested value is a plain map,
// slice or scalar.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func mergeValue(dst, src any) any {
	dm, ok1 := dst.(map[string]any)
	sm, ok2 := src.(map[string]any)
	if !ok1 || !ok2 {
		return src
	}
	for k, v := range sm {
		dm[k] = mergeValue(dm[k], v)
	}
	return dm
}
