// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophsocial"

// Metrics holds the server's collectors on a private registry so tests can
// build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Signups      prometheus.Counter
	Logins       *prometheus.CounterVec
	PostsCreated prometheus.Counter
	Likes        prometheus.Counter
	Comments     prometheus.Counter
	Follows      prometheus.Counter
	Unfollows    prometheus.Counter
	MessagesSent prometheus.Counter
	ImageUploads *prometheus.CounterVec

	RelayConnections   prometheus.Gauge
	RelayFrames        *prometheus.CounterVec
	RelayFramesDropped prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Total number of successful signups",
		}),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_created_total",
			Help:      "Total number of posts created",
		}),
		Likes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "likes_total",
			Help:      "Total number of new likes",
		}),
		Comments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Total number of comments added",
		}),
		Follows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follows_total",
			Help:      "Total number of new follow edges",
		}),
		Unfollows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unfollows_total",
			Help:      "Total number of removed follow edges",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Total number of chat messages persisted",
		}),
		ImageUploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_uploads_total",
				Help:      "Total number of stored images by kind",
			},
			[]string{"kind"},
		),
		RelayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Currently open relay connections",
		}),
		RelayFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "frames_total",
				Help:      "Relay frames received by event",
			},
			[]string{"event"},
		),
		RelayFramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_dropped_total",
			Help:      "Outbound relay frames dropped because a connection buffer was full",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.Signups,
		m.Logins,
		m.PostsCreated,
		m.Likes,
		m.Comments,
		m.Follows,
		m.Unfollows,
		m.MessagesSent,
		m.ImageUploads,
		m.RelayConnections,
		m.RelayFrames,
		m.RelayFramesDropped,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUpgrade counts a request that switched protocols. Its duration is the
// lifetime of the connection, so it stays out of the latency histogram.
func (m *Metrics) ObserveUpgrade(method, route string) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(http.StatusSwitchingProtocols)).Inc()
}
