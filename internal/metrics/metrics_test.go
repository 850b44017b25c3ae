package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStreamOutcome(t *testing.T) {
	before := testutil.ToFloat64(streamOutcomes.WithLabelValues("singlefile", StreamCompleted))
	StreamOutcome("singlefile", StreamCompleted)
	StreamOutcome("singlefile", StreamCompleted)

	after := testutil.ToFloat64(streamOutcomes.WithLabelValues("singlefile", StreamCompleted))
	assert.Equal(t, before+2, after)
}

func TestDeployOutcome(t *testing.T) {
	before := testutil.ToFloat64(deployOutcomes.WithLabelValues("framework", DeployFallback))
	DeployOutcome("framework", DeployFallback)
	assert.Equal(t, before+1, testutil.ToFloat64(deployOutcomes.WithLabelValues("framework", DeployFallback)))
}

func TestObserveBuild(t *testing.T) {
	ObserveBuild(2*time.Second, nil)
	ObserveBuild(time.Second, errors.New("npm failed"))

	assert.Equal(t, 2, testutil.CollectAndCount(buildDuration))
}

func TestSnapshotsSwept(t *testing.T) {
	before := testutil.ToFloat64(sweptSnapshots)
	SnapshotsSwept(3)
	assert.Equal(t, before+3, testutil.ToFloat64(sweptSnapshots))
}
