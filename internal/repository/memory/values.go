package memory

import (
	"time"

	"postflow/internal/domain/repositories"
)

// normalize copies row, dereferencing the pointer values callers use for
// nullable columns, so stored rows look like rows read from Postgres.
func normalize(row repositories.Row) repositories.Row {
	out := make(repositories.Row, len(row))
	for k, v := range row {
		out[k] = plain(v)
	}
	return out
}

func plain(v any) any {
	switch val := v.(type) {
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC()
	case time.Time:
		return val.UTC()
	case *float64:
		if val == nil {
			return nil
		}
		return *val
	case *int:
		if val == nil {
			return nil
		}
		return *val
	case *bool:
		if val == nil {
			return nil
		}
		return *val
	case int:
		return int64(val)
	}
	return v
}

func copyRow(row repositories.Row) repositories.Row {
	if row == nil {
		return nil
	}
	out := make(repositories.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
