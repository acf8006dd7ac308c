package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/audit"
)

// DetailInfo is the detail_info JSONB column. change_log is typed; any other
// keys are preserved in Extra.
type DetailInfo struct {
	ChangeLog audit.ChangeLog
	Extra     map[string]any

	malformed bool
}

// Malformed reports whether the last Scan fell back to an empty value.
func (d DetailInfo) Malformed() bool { return d.malformed }

// Clone returns a copy that shares no maps or pointers with d.
func (d DetailInfo) Clone() DetailInfo {
	raw, err := json.Marshal(d)
	if err != nil {
		return DetailInfo{}
	}
	var c DetailInfo
	_ = json.Unmarshal(raw, &c)
	return c
}

// Map returns detail_info as a nested map, change_log included.
func (d DetailInfo) Map() map[string]any {
	raw, err := json.Marshal(d)
	if err != nil {
		return map[string]any{"change_log": map[string]any{}}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"change_log": map[string]any{}}
	}
	return out
}

func (d DetailInfo) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+1)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["change_log"] = d.ChangeLog
	return json.Marshal(out)
}

func (d *DetailInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var next DetailInfo
	if cl, ok := raw["change_log"]; ok && string(cl) != "null" {
		if err := json.Unmarshal(cl, &next.ChangeLog); err != nil {
			return fmt.Errorf("change_log: %w", err)
		}
	}
	delete(raw, "change_log")
	if len(raw) > 0 {
		next.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			next.Extra[k] = val
		}
	}
	*d = next
	return nil
}

// Value implements driver.Valuer. The JSON is sent as text; lib/pq would
// encode a []byte as bytea.
func (d DetailInfo) Value() (driver.Value, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan implements sql.Scanner. NULL and unparseable JSON yield an empty value.
func (d *DetailInfo) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = DetailInfo{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*d = DetailInfo{malformed: true}
		return nil
	}
	if len(raw) == 0 {
		*d = DetailInfo{}
		return nil
	}
	var next DetailInfo
	if err := json.Unmarshal(raw, &next); err != nil {
		*d = DetailInfo{malformed: true}
		return nil
	}
	*d = next
	return nil
}
