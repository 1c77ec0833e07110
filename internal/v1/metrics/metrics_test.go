package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncDecConnectionTracksVariantIndependently(t *testing.T) {
	IncConnection("room")
	IncConnection("room")
	IncConnection("web")

	assert.Equal(t, float64(2), testutil.ToFloat64(ActiveConnections.WithLabelValues("room")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveConnections.WithLabelValues("web")))

	DecConnection("room")
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveConnections.WithLabelValues("room")))
}
