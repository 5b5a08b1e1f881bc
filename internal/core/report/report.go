// Package report turns a batch of per-entity metrics into a ranked
// snapshot document. Building is a pure function: no clock, no I/O.
package report

import (
	"sort"
	"time"

	"github.com/agorabot/agora/internal/core/activity"
)

// DefaultMaxEntries caps how many ranked entries a document displays;
// the remainder is summarized as an omitted count.
const DefaultMaxEntries = 15

// Mode selects the ordering policy for a report.
type Mode string

const (
	// ModeScore ranks by activity score, highest first. Ties keep their
	// input order (stable sort contract).
	ModeScore Mode = "score"
	// ModeNewest ranks by entity creation time, newest first. Creation
	// time comes from the directory, not from the metrics.
	ModeNewest Mode = "newest"
)

// Valid reports whether m names a known ordering policy.
func (m Mode) Valid() bool {
	return m == ModeScore || m == ModeNewest
}

// Entity is the displayable reference to a tracked channel.
type Entity struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Row pairs an entity with its computed metrics.
type Row struct {
	Entity  Entity
	Metrics activity.Metrics
}

// BuildInput is everything Build needs to produce a document.
type BuildInput struct {
	Kind        string
	Title       string
	Mode        Mode
	MaxEntries  int // 0 means DefaultMaxEntries
	GeneratedAt time.Time
	Rows        []Row
}

// Summary aggregates the whole batch, including entries beyond the
// display cap.
type Summary struct {
	TotalCount   int64   `json:"total_count"`
	RecentCount  int64   `json:"recent_count"`
	AverageScore float64 `json:"average_score"`
}

// Entry is one ranked line of the document.
type Entry struct {
	Rank    int              `json:"rank"`
	Entity  Entity           `json:"entity"`
	Metrics activity.Metrics `json:"metrics"`
}

// Document is the static report snapshot handed to publishers.
type Document struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Mode        Mode      `json:"mode"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Entries     []Entry   `json:"entries"`
	// Omitted is how many rows fell past the display cap.
	Omitted int `json:"omitted"`
	// NoData marks a report built from an empty batch.
	NoData bool `json:"no_data"`
}

// Build produces a ranked document from the input batch. Empty input
// yields a NoData document rather than an error.
func Build(in BuildInput) Document {
	doc := Document{
		Kind:        in.Kind,
		Title:       in.Title,
		Mode:        in.Mode,
		GeneratedAt: in.GeneratedAt,
	}

	if len(in.Rows) == 0 {
		doc.NoData = true
		return doc
	}

	rows := make([]Row, len(in.Rows))
	copy(rows, in.Rows)

	switch in.Mode {
	case ModeNewest:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Entity.CreatedAt.After(rows[j].Entity.CreatedAt)
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Metrics.Score > rows[j].Metrics.Score
		})
	}

	var scoreSum float64
	for _, row := range rows {
		doc.Summary.TotalCount += row.Metrics.Total
		doc.Summary.RecentCount += row.Metrics.Recent
		scoreSum += row.Metrics.Score
	}
	doc.Summary.AverageScore = scoreSum / float64(len(rows))

	max := in.MaxEntries
	if max <= 0 {
		max = DefaultMaxEntries
	}
	if len(rows) > max {
		doc.Omitted = len(rows) - max
		rows = rows[:max]
	}

	doc.Entries = make([]Entry, len(rows))
	for i, row := range rows {
		doc.Entries[i] = Entry{Rank: i + 1, Entity: row.Entity, Metrics: row.Metrics}
	}

	return doc
}
