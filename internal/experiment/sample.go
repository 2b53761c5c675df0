package experiment

import "math/rand"

// Sample is the mutable temperature cursor tracked across an experiment's
// lifetime.
type Sample struct {
	Current float32
	Range   TemperatureRange
}

// OutOfRange reports whether Current falls outside [Range.Lower, Range.Upper].
func (s Sample) OutOfRange() bool {
	return s.Current < s.Range.Lower || s.Current > s.Range.Upper
}

// Sequence produces the next N samples from an (delta, noiseAmplitude) pair,
// advancing cur in place. It underlies both the stabilization sequence (no
// noise, deterministic) and the carry-out sequence (random noise).
type Sequence struct {
	cur            *Sample
	delta          float32
	noiseAmplitude float32
	remaining      int
	rng            *rand.Rand
}

// StabilizationSequence returns a deterministic linear ramp from cur.Current
// to the range's midpoint across n ticks, with no noise. n must be > 0.
func StabilizationSequence(cur *Sample, n uint16) *Sequence {
	target := cur.Range.Midpoint()
	delta := (target - cur.Current) / float32(n)
	return &Sequence{cur: cur, delta: delta, noiseAmplitude: 0, remaining: int(n)}
}

// CarryOutSequence returns a sequence starting at cur.Current where each tick
// adds uniform noise in ±(upper-lower), with no drift. rng is injectable for
// deterministic tests; nil uses the package-level source.
func CarryOutSequence(cur *Sample, n uint16, rng *rand.Rand) *Sequence {
	return &Sequence{
		cur:            cur,
		delta:          0,
		noiseAmplitude: cur.Range.Width(),
		remaining:      int(n),
		rng:            rng,
	}
}

// Next advances the cursor by one tick and returns the resulting sample, or
// false once the sequence is exhausted.
func (s *Sequence) Next() (Sample, bool) {
	if s.remaining <= 0 {
		return Sample{}, false
	}
	s.cur.Current += s.delta
	if s.noiseAmplitude != 0 {
		s.cur.Current += uniformNoise(s.rng, s.noiseAmplitude)
	}
	s.remaining--
	return *s.cur, true
}

// uniformNoise draws a value in [-amplitude, amplitude), via a
// relative_val * amplitude / 100.0 construction where relative_val is
// uniform in [-100, 100).
func uniformNoise(rng *rand.Rand, amplitude float32) float32 {
	var relative float64
	if rng != nil {
		relative = rng.Float64()*200 - 100
	} else {
		relative = rand.Float64()*200 - 100
	}
	return float32(relative) * amplitude / 100.0
}

// SensorTemperatures splits an average temperature T across len(sensors)
// sensors such that their sum is exactly len(sensors)*T: the first n-1
// sensors get T plus a uniform offset in ±0.01*T, and the last sensor
// absorbs the residue so the mean is exact.
func SensorTemperatures(sensors []string, average float32, rng *rand.Rand) map[string]float32 {
	out := make(map[string]float32, len(sensors))
	if len(sensors) == 0 {
		return out
	}
	var cumulative float32
	for _, sensor := range sensors[:len(sensors)-1] {
		offset := uniformNoise(rng, average*0.01)
		temp := average + offset
		out[sensor] = temp
		cumulative += temp
	}
	last := sensors[len(sensors)-1]
	out[last] = float32(len(sensors))*average - cumulative
	return out
}
