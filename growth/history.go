package growth

import "gonum.org/v1/gonum/stat"

// Measurement is one per-tick growth observation.
type Measurement struct {
	Day      float64
	Progress float64
	Height   float64
	Biomass  float64
	Modifier float64
}

// ring is a bounded measurement buffer. Writes overwrite the oldest entry
// once capacity is reached.
type ring struct {
	buf   []Measurement
	next  int
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]Measurement, capacity)}
}

func (r *ring) push(m Measurement) {
	r.buf[r.next] = m
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// ordered returns the buffered measurements oldest first.
func (r *ring) ordered() []Measurement {
	out := make([]Measurement, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// slopes fits day-vs-height and day-vs-biomass regressions over the buffered
// window and returns both slopes. ok is false when the window is too small
// for a meaningful fit.
func (r *ring) slopes(minSamples int) (heightSlope, biomassSlope float64, ok bool) {
	if r.count < minSamples || r.count < 2 {
		return 0, 0, false
	}
	ms := r.ordered()
	days := make([]float64, len(ms))
	heights := make([]float64, len(ms))
	masses := make([]float64, len(ms))
	for i, m := range ms {
		days[i] = m.Day
		heights[i] = m.Height
		masses[i] = m.Biomass
	}
	_, heightSlope = stat.LinearRegression(days, heights, nil, false)
	_, biomassSlope = stat.LinearRegression(days, masses, nil, false)
	return heightSlope, biomassSlope, true
}
