package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

func nowString() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func timeString(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeString(*t), Valid: true}
}

func nullTimeOut(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt64Out(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func marshalCounters(m map[string]int64) string {
	if m == nil {
		m = map[string]int64{}
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalCounters(s string) map[string]int64 {
	out := map[string]int64{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func marshalTypeCounters(m map[domain.AssetType]int64) string {
	conv := make(map[string]int64, len(m))
	for k, v := range m {
		conv[string(k)] = v
	}
	return marshalCounters(conv)
}

func unmarshalTypeCounters(s string) map[domain.AssetType]int64 {
	raw := unmarshalCounters(s)
	out := make(map[domain.AssetType]int64, len(raw))
	for k, v := range raw {
		out[domain.AssetType(k)] = v
	}
	return out
}
