package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDatabaseQuery(t *testing.T) {
	RecordDatabaseQuery("get", 0.004)
	RecordDatabaseQuery("exec", 0.010)

	// One histogram child per operation label
	assert.GreaterOrEqual(t, testutil.CollectAndCount(DatabaseQueryDuration), 2)
}

func TestRecordRun(t *testing.T) {
	RecordRun("ok", 1.5)

	assert.GreaterOrEqual(t, testutil.ToFloat64(RunsTotal.WithLabelValues("ok")), 1.0)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(RunDuration), 1)
}
