package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a structured key-value map stored as JSON alongside audit rows.
type Metadata map[string]any

// GormDataType keeps the column type portable between postgres and the
// sqlite test databases.
func (Metadata) GormDataType() string { return "json" }

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("metadata marshal: %w", err)
	}
	return b, nil
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata scan: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal(raw, m)
}
