package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// reqDuration is labeled by route template, method and status.
var reqDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: []float64{0.01, 0.1, 0.3, 1.2, 5, 30},
	},
	[]string{"path", "method", "status"},
)

// submissions counts contact submissions by final state.
var submissions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contact_submissions_total",
		Help: "Contact submissions by final state.",
	},
	[]string{"state"},
)

// deliveryAttempts counts mail delivery attempts by recipient and result.
var deliveryAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contact_delivery_attempts_total",
		Help: "Mail delivery attempts by recipient role and result.",
	},
	[]string{"recipient", "result"},
)

// RegisterDefault registers the runtime and process collectors plus the
// contact metrics. Calling it more than once is harmless.
func RegisterDefault(logger *zap.Logger) {
	mustRegister(logger, "Go collector", collectors.NewGoCollector())
	mustRegister(logger, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mustRegister(logger, "HTTP request histogram", reqDuration)
	mustRegister(logger, "submission counter", submissions)
	mustRegister(logger, "delivery attempt counter", deliveryAttempts)
}

func mustRegister(logger *zap.Logger, name string, c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		if logger != nil {
			logger.Fatal("failed_to_register_metric", zap.String("collector", name), zap.Error(err))
		}
		panic("metrics: failed to register " + name + ": " + err.Error())
	}
}

// ObserveSubmission records the final state of one submission
func ObserveSubmission(state string) {
	submissions.WithLabelValues(state).Inc()
}

// ObserveDelivery records one delivery attempt
func ObserveDelivery(recipient string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	deliveryAttempts.WithLabelValues(recipient, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// HTTPMetrics records request durations. The mux route template is used as
// the path label so path parameters cannot explode cardinality; unmatched
// requests share a single label.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}

		path := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		reqDuration.WithLabelValues(path, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registered metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
