package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/smendozaCL/classroom-transcripts/internal/metrics"
)

// listPageLimit is the size of the bulk status page fetched per sweep.
const listPageLimit = 100

// ReconcilerOptions configures the background status sweep.
type ReconcilerOptions struct {
	Registry  Registry
	Provider  Provider
	Completer *Completer

	// Interval is the sweep period; Grace is how long a non-terminal job may
	// sit without an update before it is considered webhook-missed.
	Interval time.Duration
	Grace    time.Duration

	// PerJobTimeout bounds each provider lookup so one slow call cannot
	// stall the sweep; the job is simply retried next sweep.
	PerJobTimeout time.Duration

	Log zerolog.Logger
}

// Reconciler periodically polls the provider for jobs whose webhook never
// arrived and drives them to a terminal state. Jobs are processed
// independently and out of order; a webhook racing in mid-sweep is resolved
// by registry idempotency.
type Reconciler struct {
	opts ReconcilerOptions
	log  zerolog.Logger
	stop chan struct{}
	done chan struct{}
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	if opts.PerJobTimeout <= 0 {
		opts.PerJobTimeout = 10 * time.Second
	}
	return &Reconciler{
		opts: opts,
		log:  opts.Log.With().Str("component", "reconciler").Logger(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (r *Reconciler) Start() { go r.loop() }

func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reconciler) loop() {
	defer close(r.done)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(context.Background())
		case <-r.stop:
			return
		}
	}
}

// Sweep runs one reconciliation pass. Exported so tests and operational
// tooling can trigger it without the ticker.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.opts.Grace)
	stale, err := r.opts.Registry.ListStale(ctx, cutoff)
	if err != nil {
		r.log.Error().Err(err).Msg("list stale jobs failed")
		return
	}
	metrics.ReconcilerSweepsTotal.Inc()
	if len(stale) == 0 {
		return
	}

	index := r.bulkStatusIndex(ctx)

	var resolved, deferred, skipped int
	for _, job := range stale {
		select {
		case <-r.stop:
			return
		default:
		}

		// A still-running job seen in the bulk page needs no point lookup;
		// push it past the grace window and move on.
		if st, ok := index[job.TranscriptID]; ok && (st == "queued" || st == "processing") {
			if err := r.opts.Registry.Touch(ctx, job.TranscriptID); err != nil {
				r.log.Warn().Err(err).Str("transcript_id", job.TranscriptID).Msg("touch failed")
			}
			deferred++
			continue
		}

		jobCtx, cancel := context.WithTimeout(ctx, r.opts.PerJobTimeout)
		err := r.opts.Completer.Resolve(jobCtx, job.TranscriptID)
		cancel()
		if err != nil {
			// Transient: the job stays stale and the next sweep retries it.
			r.log.Warn().Err(err).Str("transcript_id", job.TranscriptID).Msg("reconcile failed, will retry next sweep")
			skipped++
			continue
		}
		resolved++
		metrics.ReconciledJobsTotal.Inc()
	}

	r.log.Info().
		Int("stale", len(stale)).
		Int("resolved", resolved).
		Int("deferred", deferred).
		Int("skipped", skipped).
		Msg("reconcile sweep complete")
}

// bulkStatusIndex fetches the newest page of provider transcripts so most
// stale jobs can be classified without a per-job lookup. Errors degrade to an
// empty index; every job then falls back to a point Get.
func (r *Reconciler) bulkStatusIndex(ctx context.Context) map[string]string {
	listCtx, cancel := context.WithTimeout(ctx, r.opts.PerJobTimeout)
	defer cancel()

	page, err := r.opts.Provider.List(listCtx, "", listPageLimit)
	if err != nil {
		r.log.Debug().Err(err).Msg("bulk status list unavailable, falling back to point lookups")
		return nil
	}

	index := make(map[string]string, len(page.Transcripts))
	for _, t := range page.Transcripts {
		index[t.ID] = t.Status
	}
	return index
}
