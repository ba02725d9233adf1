package status

import "sync/atomic"

// Registry is the shared metrics facade between the frame loop and its readers
// Writers cache cell pointers at construction; readers load atomics from any goroutine
type Registry struct {
	Bools   *MetricMap[atomic.Bool]
	Ints    *MetricMap[atomic.Int64]
	Floats  *MetricMap[AtomicFloat]
	Strings *MetricMap[AtomicString]
}

// NewRegistry creates an initialized Registry
func NewRegistry() *Registry {
	return &Registry{
		Bools:   NewMetricMap[atomic.Bool](),
		Ints:    NewMetricMap[atomic.Int64](),
		Floats:  NewMetricMap[AtomicFloat](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// TotalCount returns total metrics across all types
func (r *Registry) TotalCount() int {
	return r.Bools.Count() + r.Ints.Count() + r.Floats.Count() + r.Strings.Count()
}

// Dump is a point-in-time copy of every registered cell
type Dump struct {
	Count   int                `json:"count"`
	Bools   map[string]bool    `json:"bools"`
	Ints    map[string]int64   `json:"ints"`
	Floats  map[string]float64 `json:"floats"`
	Strings map[string]string  `json:"strings"`
}

// Dump copies every cell; cells are read individually, not as one atomic view
func (r *Registry) Dump() Dump {
	d := Dump{
		Count:   r.TotalCount(),
		Bools:   make(map[string]bool, r.Bools.Count()),
		Ints:    make(map[string]int64, r.Ints.Count()),
		Floats:  make(map[string]float64, r.Floats.Count()),
		Strings: make(map[string]string, r.Strings.Count()),
	}
	r.Bools.Range(func(k string, v *atomic.Bool) { d.Bools[k] = v.Load() })
	r.Ints.Range(func(k string, v *atomic.Int64) { d.Ints[k] = v.Load() })
	r.Floats.Range(func(k string, v *AtomicFloat) { d.Floats[k] = v.Get() })
	r.Strings.Range(func(k string, v *AtomicString) { d.Strings[k] = v.Load() })
	return d
}
