package plant

import "fmt"

// Result is the structured outcome of a command entry point. Operations
// never return bare booleans; failures carry a message and successes carry
// the metrics relevant to the command.
type Result struct {
	OK      bool
	Message string
	Metrics map[string]float64
}

// Ok builds a successful result.
func Ok(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failed result.
func Fail(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// With attaches a metric to the result and returns it, for chaining.
func (r Result) With(name string, value float64) Result {
	if r.Metrics == nil {
		r.Metrics = make(map[string]float64, 4)
	}
	r.Metrics[name] = value
	return r
}

// Metric returns a named metric, or 0 when absent.
func (r Result) Metric(name string) float64 {
	return r.Metrics[name]
}
