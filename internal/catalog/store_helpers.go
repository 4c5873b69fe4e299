package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const entityColumns = "id, level, identifier, hashes, sources, revised, min_timestamp, max_timestamp, init_version, rev_version, final_version, done, expanded, is_new, content_uri, instances"

// entityColumnsQualified prefixes entityColumns for joins against entity_links.
const entityColumnsQualified = "e.id, e.level, e.identifier, e.hashes, e.sources, e.revised, e.min_timestamp, e.max_timestamp, e.init_version, e.rev_version, e.final_version, e.done, e.expanded, e.is_new, e.content_uri, e.instances"

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*Entity, error) {
	var (
		id          string
		level       string
		identifier  string
		hashesRaw   string
		sourcesRaw  string
		revisedRaw  string
		minRaw      sql.NullString
		maxRaw      sql.NullString
		initVersion int
		revVersion  int
		final       int
		done        int
		expanded    int
		isNew       int
		contentURI  sql.NullString
		instances   int
	)
	if err := scanner.Scan(
		&id,
		&level,
		&identifier,
		&hashesRaw,
		&sourcesRaw,
		&revisedRaw,
		&minRaw,
		&maxRaw,
		&initVersion,
		&revVersion,
		&final,
		&done,
		&expanded,
		&isNew,
		&contentURI,
		&instances,
	); err != nil {
		return nil, err
	}

	e := &Entity{
		ID:           id,
		Level:        Level(level),
		Identifier:   identifier,
		InitVersion:  initVersion,
		RevVersion:   revVersion,
		FinalVersion: final,
		Done:         done != 0,
		Expanded:     expanded != 0,
		IsNew:        isNew != 0,
		ContentURI:   contentURI.String,
		Instances:    instances,
	}
	if err := json.Unmarshal([]byte(hashesRaw), &e.Hashes); err != nil {
		return nil, fmt.Errorf("decode hashes of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(sourcesRaw), &e.Sources); err != nil {
		return nil, fmt.Errorf("decode sources of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(revisedRaw), &e.Revised); err != nil {
		return nil, fmt.Errorf("decode revised of %s: %w", id, err)
	}
	if ts, err := parseTimeString(minRaw.String); err == nil {
		e.MinTimestamp = ts
	}
	if ts, err := parseTimeString(maxRaw.String); err == nil {
		e.MaxTimestamp = ts
	}
	return e, nil
}

func scanEntities(rows *sql.Rows) ([]*Entity, error) {
	defer rows.Close()
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// entityArgs returns the column values of e in entityColumns order.
func entityArgs(e *Entity) ([]any, error) {
	hashes, err := json.Marshal(nonNilStrings(e.Hashes))
	if err != nil {
		return nil, fmt.Errorf("encode hashes: %w", err)
	}
	sources, err := json.Marshal(nonNilBools(e.Sources))
	if err != nil {
		return nil, fmt.Errorf("encode sources: %w", err)
	}
	revised, err := json.Marshal(nonNilBools(e.Revised))
	if err != nil {
		return nil, fmt.Errorf("encode revised: %w", err)
	}
	return []any{
		e.ID,
		string(e.Level),
		e.Identifier,
		string(hashes),
		string(sources),
		string(revised),
		formatTime(e.MinTimestamp),
		formatTime(e.MaxTimestamp),
		e.InitVersion,
		e.RevVersion,
		e.FinalVersion,
		boolToInt(e.Done),
		boolToInt(e.Expanded),
		boolToInt(e.IsNew),
		nullableString(e.ContentURI),
		e.Instances,
	}, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilBools(values []bool) []bool {
	if values == nil {
		return []bool{}
	}
	return values
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
