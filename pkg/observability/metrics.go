package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for the service. Each collector owns
// its registry, so tests can build as many as they like. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph and content metrics
	FollowToggles *prometheus.CounterVec
	LikeToggles   *prometheus.CounterVec
	Comments      prometheus.Counter
	PostsCreated  prometheus.Counter
	PostsDeleted  prometheus.Counter

	// Feed metrics
	FeedRequests *prometheus.CounterVec
	FeedDuration *prometheus.HistogramVec

	// Side effects
	Notifications   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		FollowToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_toggles_total",
			Help:      "Follow toggles by outcome",
		}, []string{"outcome"}),
		LikeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by outcome",
		}, []string{"outcome"}),
		Comments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Total number of comments appended",
		}),
		PostsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_created_total",
			Help:      "Total number of posts created",
		}),
		PostsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_deleted_total",
			Help:      "Total number of posts deleted",
		}),
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Feed compositions by mode",
		}, []string{"mode"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_compose_duration_seconds",
			Help:      "Feed composition duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and result (stored or dropped)",
		}, []string{"kind", "result"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the event bus by type and result",
		}, []string{"event_type", "result"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.FollowToggles,
		c.LikeToggles,
		c.Comments,
		c.PostsCreated,
		c.PostsDeleted,
		c.FeedRequests,
		c.FeedDuration,
		c.Notifications,
		c.EventsPublished,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) RecordFollow(outcome string) {
	if c != nil {
		c.FollowToggles.WithLabelValues(outcome).Inc()
	}
}

func (c *Collector) RecordLike(outcome string) {
	if c != nil {
		c.LikeToggles.WithLabelValues(outcome).Inc()
	}
}

func (c *Collector) RecordComment() {
	if c != nil {
		c.Comments.Inc()
	}
}

func (c *Collector) RecordPostCreated() {
	if c != nil {
		c.PostsCreated.Inc()
	}
}

func (c *Collector) RecordPostDeleted() {
	if c != nil {
		c.PostsDeleted.Inc()
	}
}

// RecordFeed counts a feed composition and its latency.
func (c *Collector) RecordFeed(mode string, took time.Duration) {
	if c == nil {
		return
	}
	c.FeedRequests.WithLabelValues(mode).Inc()
	c.FeedDuration.WithLabelValues(mode).Observe(took.Seconds())
}

// RecordNotification counts a notification as "stored" or "dropped".
func (c *Collector) RecordNotification(kind, result string) {
	if c != nil {
		c.Notifications.WithLabelValues(kind, result).Inc()
	}
}

func (c *Collector) RecordEvent(eventType, result string) {
	if c != nil {
		c.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}

func (c *Collector) RecordCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

func (c *Collector) RecordHTTP(method, route string, status int, took time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
