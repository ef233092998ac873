package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSearchRecordsOutcome(t *testing.T) {
	ObserveSearch("docs", 10*time.Millisecond, false, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(SearchTotal.WithLabelValues("docs", "ok")))

	ObserveSearch("docs", 10*time.Millisecond, true, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(SearchTotal.WithLabelValues("docs", "partial")))

	ObserveSearch("docs", 10*time.Millisecond, false, errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(SearchTotal.WithLabelValues("docs", "error")))
}

func TestRecordRebuildAndAutoSaveAndSnapshot(t *testing.T) {
	RecordRebuild("q8", nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(RebuildsTotal.WithLabelValues("q8", "ok")))

	RecordAutoSave("q8", errors.New("disk full"))
	assert.Equal(t, float64(1), testutil.ToFloat64(AutoSaveTotal.WithLabelValues("q8", "error")))

	RecordSnapshot("q8", nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(SnapshotsTotal.WithLabelValues("q8", "ok")))
}
