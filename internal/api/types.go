package api

import (
	"time"

	"imgcat/internal/catalog"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Version describes a version record in a transport-friendly format.
type Version struct {
	Number       int      `json:"number"`
	SurrogateID  string   `json:"surrogateId"`
	Done         bool     `json:"done"`
	Expanded     bool     `json:"expanded"`
	Instances    int      `json:"instances"`
	Hash         string   `json:"hash,omitempty"`
	SourceHashes []string `json:"sourceHashes,omitempty"`
	MinTimestamp string   `json:"minTimestamp,omitempty"`
	MaxTimestamp string   `json:"maxTimestamp,omitempty"`
}

// LevelStatus counts the live entities of one level under a version.
type LevelStatus struct {
	Level string `json:"level"`
	Live  int    `json:"live"`
	Done  int    `json:"done"`
}

// VersionSummary is the body of GET /api/versions/{n}.
type VersionSummary struct {
	Version Version       `json:"version"`
	Levels  []LevelStatus `json:"levels"`
}

// VersionListResponse is the body of GET /api/versions.
type VersionListResponse struct {
	Versions []Version `json:"versions"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromEntity converts a version record.
func FromEntity(e *catalog.Entity) Version {
	if e == nil {
		return Version{}
	}
	v := Version{
		Number:       e.VersionNumber(),
		SurrogateID:  e.ID,
		Done:         e.Done,
		Expanded:     e.Expanded,
		Instances:    e.Instances,
		Hash:         e.CombinedHash(),
		MinTimestamp: formatTime(e.MinTimestamp),
		MaxTimestamp: formatTime(e.MaxTimestamp),
	}
	if hashes := e.SourceHashes(); len(hashes) > 0 {
		v.SourceHashes = append([]string(nil), hashes...)
	}
	return v
}

// FromLevelCounts converts store counts, keeping the hierarchy order.
func FromLevelCounts(counts []catalog.LevelCount) []LevelStatus {
	out := make([]LevelStatus, 0, len(counts))
	for _, c := range counts {
		out = append(out, LevelStatus{Level: string(c.Level), Live: c.Live, Done: c.Done})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
