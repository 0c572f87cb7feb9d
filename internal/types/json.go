package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonb column helpers shared by the tracking models. Postgres hands back
// []byte, the sqlite driver used in tests hands back string.

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func jsonScan(dst any, src any) error {
	switch raw := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(raw, dst)
	case string:
		return json.Unmarshal([]byte(raw), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
