package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var WorkshopCreatedAmount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "workshops_created_amount",
	Help: "The total number of workshops created",
})

var WorkshopStatusChangedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "workshops_status_changed_amount",
	Help: "The total number of workshop status changes by target status",
}, []string{"status"})

var ApplicationSubmittedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "applications_submitted_amount",
	Help: "The total number of applications submitted by initial status",
}, []string{"status"})

var ApplicationDecidedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "applications_decided_amount",
	Help: "The total number of applications approved or rejected",
}, []string{"status"})

var DuplicateSubmitAmount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "applications_duplicate_submit_amount",
	Help: "The total number of concurrent duplicate submissions collapsed into one",
})

var NotificationFailedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notifications_failed_amount",
	Help: "The total number of notifications that could not be delivered",
}, []string{"channel"})

var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "http_request_duration_seconds",
	Help:    "Duration of HTTP requests in seconds",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "code"})

// Instrument records RequestDuration labelled by the matched chi route
// pattern, so path parameters do not explode the label space.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
