package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ForecastPoints is a slice of ForecastPoint that implements sql.Scanner and
// driver.Valuer for JSONB column storage.
type ForecastPoints []ForecastPoint

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (f *ForecastPoints) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	data, err := jsonbBytes(value)
	if err != nil {
		return fmt.Errorf("forecast points: %w", err)
	}
	return json.Unmarshal(data, f)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (f ForecastPoints) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Recommendations is an ordered list of advisory strings with JSONB support.
type Recommendations []string

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (r *Recommendations) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	data, err := jsonbBytes(value)
	if err != nil {
		return fmt.Errorf("recommendations: %w", err)
	}
	return json.Unmarshal(data, r)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (r Recommendations) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// jsonbBytes normalizes the driver value of a JSONB column to raw bytes.
func jsonbBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
