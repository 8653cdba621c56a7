package postgres

import (
	"database/sql"
	"time"
)

func nullInt64ToPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func nullTimeToPtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	out := v.Time.UTC()
	return &out
}

// int64PtrArg converts an optional reference to a driver value; nil binds NULL.
func int64PtrArg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
