// Package metrics exposes the pipeline's live counters for scraping. The
// JSON stats files remain the durable record; this is the at-a-glance
// surface an operator points a dashboard at.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters on an independent registry so
// multiple instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	Cycles         prometheus.Counter
	UnitsProcessed prometheus.Counter
	ChunksComputed prometheus.Counter
	CacheHits      prometheus.Counter
	Errors         prometheus.Counter
	Restarts       prometheus.Counter
	Crashes        prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "googolplex",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &Metrics{
		registry:       reg,
		Cycles:         counter("cycles_total", "Completed daemon cycles."),
		UnitsProcessed: counter("units_processed_total", "Work units fully transformed."),
		ChunksComputed: counter("chunks_computed_total", "Chunks paid for at the transform."),
		CacheHits:      counter("cache_hits_total", "Chunks served from the result cache."),
		Errors:         counter("errors_total", "Absorbed per-chunk and per-cycle errors."),
		Restarts:       counter("restarts_total", "Scheduler restarts performed by the supervisor."),
		Crashes:        counter("crashes_total", "Unexpected scheduler exits."),
	}
}

// Handler serves the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the scrape endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
