package loadgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/landaudiogo/cc-assignment-2023/internal/cache"
)

func TestValidateTemperatureAcceptsMatchingSet(t *testing.T) {
	d := cache.NewDocument("exp-1", []cache.Measurement{
		{Timestamp: 1, Temperature: 26},
		{Timestamp: 2, Temperature: 27},
	}, rng25to265())
	q := Query{Kind: QueryTemperature, Doc: d, Start: 0, End: 5}

	body := []byte(`[{"timestamp":2,"temperature":27},{"timestamp":1,"temperature":26}]`)
	assert.NoError(t, validate(q, body))
}

func TestValidateTemperatureRejectsMismatchedLength(t *testing.T) {
	d := cache.NewDocument("exp-1", []cache.Measurement{
		{Timestamp: 1, Temperature: 26},
		{Timestamp: 2, Temperature: 27},
	}, rng25to265())
	q := Query{Kind: QueryTemperature, Doc: d, Start: 0, End: 5}

	body := []byte(`[{"timestamp":1,"temperature":26}]`)
	err := validate(q, body)
	var re *ResponseError
	if assert.ErrorAs(t, err, &re) {
		assert.Equal(t, ResponseValidationError, re.Kind)
	}
}

func TestValidateOutOfBoundsComparesAgainstCachedSet(t *testing.T) {
	d := cache.NewDocument("exp-1", []cache.Measurement{
		{Timestamp: 1, Temperature: 100}, // out of [25.5, 26.5]
		{Timestamp: 2, Temperature: 26},
	}, rng25to265())
	q := Query{Kind: QueryOutOfBounds, Doc: d}

	body := []byte(`[{"timestamp":1,"temperature":100}]`)
	assert.NoError(t, validate(q, body))
}

func TestValidateRejectsUndecodableBody(t *testing.T) {
	d := cache.NewDocument("exp-1", nil, rng25to265())
	q := Query{Kind: QueryOutOfBounds, Doc: d}

	err := validate(q, []byte(`not json`))
	var re *ResponseError
	if assert.ErrorAs(t, err, &re) {
		assert.Equal(t, ResponseDeserializationError, re.Kind)
	}
}
