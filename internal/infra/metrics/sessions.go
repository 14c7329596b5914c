package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsDeleted,
		sessionsCleaned,
	)
}

var (
	sessionsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_deleted_total",
		Help: "Sessions removed by explicit deletion.",
	})

	sessionsCleaned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_cleaned_total",
		Help: "Sessions removed by the age-based cleanup sweep.",
	})
)

func IncSessionDeleted() { sessionsDeleted.Inc() }

func AddSessionsCleaned(n int64) { sessionsCleaned.Add(float64(n)) }
