package experiment

import (
	"testing"

	"github.com/landaudiogo/cc-assignment-2023/internal/envelope"
	"github.com/stretchr/testify/assert"
)

func mkSample(current float32, outOfRange bool) Sample {
	// Range [0,10]; outOfRange picks a value outside or inside deterministically.
	rng := TemperatureRange{Lower: 0, Upper: 10}
	if outOfRange {
		return Sample{Current: 20, Range: rng}
	}
	return Sample{Current: current, Range: rng}
}

func TestClassifyStabilizationEdgeTrigger(t *testing.T) {
	outOfRange := mkSample(0, true)
	inRange := mkSample(5, false)

	assert.Equal(t, envelope.NotificationStabilized, Classify(StageStabilization, &outOfRange, inRange))
	assert.Equal(t, envelope.NotificationNone, Classify(StageStabilization, &inRange, inRange))
	assert.Equal(t, envelope.NotificationNone, Classify(StageStabilization, &outOfRange, outOfRange))
}

func TestClassifyStabilizationFirstTickWithNilPrevCanFireSpuriously(t *testing.T) {
	// a nil prev counts as out-of-range for Stabilization, so the very
	// first tick can emit Stabilized even with no real crossing yet.
	inRange := mkSample(5, false)
	assert.Equal(t, envelope.NotificationStabilized, Classify(StageStabilization, nil, inRange))
}

func TestClassifyCarryOutEdgeTrigger(t *testing.T) {
	outOfRange := mkSample(0, true)
	inRange := mkSample(5, false)

	assert.Equal(t, envelope.NotificationOutOfRange, Classify(StageCarryOut, &inRange, outOfRange))
	assert.Equal(t, envelope.NotificationNone, Classify(StageCarryOut, &outOfRange, outOfRange))
	assert.Equal(t, envelope.NotificationNone, Classify(StageCarryOut, &inRange, inRange))
}

func TestClassifyCarryOutFirstTickWithNilPrevCountsAsInRange(t *testing.T) {
	outOfRange := mkSample(0, true)
	assert.Equal(t, envelope.NotificationOutOfRange, Classify(StageCarryOut, nil, outOfRange))
}
