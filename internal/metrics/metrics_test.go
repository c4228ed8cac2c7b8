package metrics_test

import (
	"testing"
	"time"

	"github.com/fivetwenty-io/fmdata/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollection(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	collection := metrics.New(reg)

	assert.Same(t, collection, metrics.New(reg))

	collection.ObserveRequest("crm", "find", 0, 20*time.Millisecond)
	collection.ObserveRequest("crm", "find", 401, 10*time.Millisecond)
	collection.IncLogin("crm")
	collection.IncReauth("crm")

	assert.InDelta(t, 1, testutil.ToFloat64(collection.Requests.WithLabelValues("crm", "find", "0")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(collection.APIErrors.WithLabelValues("crm", "401")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(collection.Logins.WithLabelValues("crm")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(collection.Reauthentications.WithLabelValues("crm")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(collection.RequestDuration))
}

func TestNilCollection(t *testing.T) {
	t.Parallel()

	var collection *metrics.Collection

	assert.Nil(t, metrics.New(nil))
	assert.NotPanics(t, func() {
		collection.ObserveRequest("crm", "find", 0, time.Millisecond)
		collection.IncLogin("crm")
		collection.IncReauth("crm")
	})
}
