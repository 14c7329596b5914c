package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// register enqueues collectors at init time; nothing touches the default
// registry until main calls MustRegister.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every enqueued collector exactly once, so both the
// server and the cleanup CLI can call it unconditionally.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(pending...)
	})
}
