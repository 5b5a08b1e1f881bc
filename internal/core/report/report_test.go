package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agorabot/agora/internal/core/activity"
)

func row(id int64, name string, score float64) Row {
	return Row{
		Entity:  Entity{ID: id, Name: name},
		Metrics: activity.Metrics{Score: score},
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	doc := Build(BuildInput{Kind: "proposed_activity", Title: "Report", Mode: ModeScore})

	assert.True(t, doc.NoData)
	assert.Empty(t, doc.Entries)
	assert.Equal(t, int64(0), doc.Summary.TotalCount)
	assert.Equal(t, int64(0), doc.Summary.RecentCount)
	assert.Equal(t, 0.0, doc.Summary.AverageScore)
}

func TestBuild_ScoreModeOrdersDescending(t *testing.T) {
	doc := Build(BuildInput{
		Mode: ModeScore,
		Rows: []Row{
			row(1, "alpha", 10),
			row(2, "beta", 30),
			row(3, "gamma", 20),
		},
	})

	require.Len(t, doc.Entries, 3)
	assert.Equal(t, []float64{30, 20, 10}, []float64{
		doc.Entries[0].Metrics.Score,
		doc.Entries[1].Metrics.Score,
		doc.Entries[2].Metrics.Score,
	})
	assert.Equal(t, 1, doc.Entries[0].Rank)
	assert.Equal(t, 3, doc.Entries[2].Rank)
}

func TestBuild_ScoreModeTiesKeepInputOrder(t *testing.T) {
	doc := Build(BuildInput{
		Mode: ModeScore,
		Rows: []Row{
			row(1, "first", 5),
			row(2, "second", 5),
			row(3, "third", 5),
		},
	})

	require.Len(t, doc.Entries, 3)
	assert.Equal(t, "first", doc.Entries[0].Entity.Name)
	assert.Equal(t, "second", doc.Entries[1].Entity.Name)
	assert.Equal(t, "third", doc.Entries[2].Entity.Name)
}

func TestBuild_NewestModeOrdersByCreation(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	doc := Build(BuildInput{
		Mode: ModeNewest,
		Rows: []Row{
			{Entity: Entity{ID: 1, Name: "old", CreatedAt: base.Add(-48 * time.Hour)}},
			{Entity: Entity{ID: 2, Name: "new", CreatedAt: base}},
			{Entity: Entity{ID: 3, Name: "mid", CreatedAt: base.Add(-24 * time.Hour)}},
		},
	})

	require.Len(t, doc.Entries, 3)
	assert.Equal(t, "new", doc.Entries[0].Entity.Name)
	assert.Equal(t, "mid", doc.Entries[1].Entity.Name)
	assert.Equal(t, "old", doc.Entries[2].Entity.Name)
}

func TestBuild_CapsEntriesAndCountsOmitted(t *testing.T) {
	var rows []Row
	for i := 0; i < 20; i++ {
		rows = append(rows, Row{
			Entity:  Entity{ID: int64(i), Name: "ch"},
			Metrics: activity.Metrics{Total: 1, Recent: 1, Score: float64(i)},
		})
	}

	doc := Build(BuildInput{Mode: ModeScore, Rows: rows})

	assert.Len(t, doc.Entries, DefaultMaxEntries)
	assert.Equal(t, 5, doc.Omitted)
	// Summary covers the whole batch, not just the displayed slice.
	assert.Equal(t, int64(20), doc.Summary.TotalCount)
	assert.Equal(t, int64(20), doc.Summary.RecentCount)
}

func TestBuild_SummaryAverages(t *testing.T) {
	doc := Build(BuildInput{
		Mode: ModeScore,
		Rows: []Row{
			{Metrics: activity.Metrics{Total: 10, Recent: 4, Score: 2}},
			{Metrics: activity.Metrics{Total: 20, Recent: 6, Score: 4}},
		},
	})

	assert.Equal(t, int64(30), doc.Summary.TotalCount)
	assert.Equal(t, int64(10), doc.Summary.RecentCount)
	assert.InDelta(t, 3.0, doc.Summary.AverageScore, 1e-9)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	rows := []Row{row(1, "a", 1), row(2, "b", 9)}
	_ = Build(BuildInput{Mode: ModeScore, Rows: rows})

	assert.Equal(t, int64(1), rows[0].Entity.ID, "input order must be preserved")
}

func TestMarkdown_NoData(t *testing.T) {
	out := Markdown(Build(BuildInput{Title: "Report", Mode: ModeScore}))
	assert.Contains(t, out, "# Report")
	assert.Contains(t, out, "No channels found")
}

func TestMarkdown_RankedList(t *testing.T) {
	doc := Build(BuildInput{
		Title:       "Proposed Channels Activity Report",
		Mode:        ModeScore,
		GeneratedAt: time.Unix(1_700_000_000, 0),
		Rows: []Row{
			{Entity: Entity{ID: 1, Name: "go-help"}, Metrics: activity.Metrics{Total: 3, Recent: 2, Score: 2.4}},
		},
	})

	out := Markdown(doc)
	assert.Contains(t, out, "1. **go-help** — 2.4 pts (3 total, 2 recent)")
	assert.Contains(t, out, "Score formula")
}
