package loader

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/poiesic/contentloader/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datedDoc(id string, ts time.Time) *core.Document {
	return core.NewDocument(id, id, "text", core.DocumentMetadata{
		SourceType: core.SourceConfluence,
		SourceID:   id,
		UpdatedAt:  ts,
	})
}

func TestShouldProcess(t *testing.T) {
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	window := core.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, ShouldProcess(datedDoc("in", jan), window))
	assert.False(t, ShouldProcess(datedDoc("out", jan.AddDate(0, 2, 0)), window))
	assert.True(t, ShouldProcess(datedDoc("undated", time.Time{}), window), "documents without a timestamp pass")
	assert.True(t, ShouldProcess(datedDoc("any", jan), core.DateRange{}))
	assert.False(t, ShouldProcess(nil, window))
}

func TestExecute_RelaysUnfiltered(t *testing.T) {
	old := datedDoc("old", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	recent := datedDoc("recent", time.Now())

	var seen core.DateRange
	exec := ExecutorFunc(func(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error] {
		seen = dr
		return streamOf([]*core.Document{old, recent}, nil)
	})

	window := core.DateRange{Start: time.Now().Add(-time.Hour)}
	got, err := collect(Execute(context.Background(), exec, window, fastPolicy()))
	require.NoError(t, err)
	assert.Equal(t, []*core.Document{old, recent}, got, "Execute must not drop documents")
	assert.Equal(t, window, seen, "the range is handed to Fetch")

	filtered, err := collect(Filter(Execute(context.Background(), exec, window, fastPolicy()), window))
	require.NoError(t, err)
	assert.Equal(t, []*core.Document{recent}, filtered)
}

func TestExecute_DefaultRangeIsUnbounded(t *testing.T) {
	var seen core.DateRange
	exec := ExecutorFunc(func(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error] {
		seen = dr
		return streamOf(nil, nil)
	})

	_, err := collect(Execute(context.Background(), exec, core.DateRange{}, nil))
	require.NoError(t, err)
	assert.True(t, seen.IsUnbounded())
}

func TestExecute_RetriesTransientFetch(t *testing.T) {
	calls := 0
	exec := ExecutorFunc(func(ctx context.Context, dr core.DateRange) iter.Seq2[*core.Document, error] {
		calls++
		if calls == 1 {
			return streamOf(nil, core.ErrTransient)
		}
		return streamOf(testDocs("r", 2), nil)
	})

	got, err := collect(Execute(context.Background(), exec, core.DateRange{}, fastPolicy()))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, calls)
}
