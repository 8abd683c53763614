// Package worker runs the background jobs a turn hands off: interaction
// logging, playlist persistence and preview loudness analysis.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

// Kind identifies what a Job does.
type Kind int

const (
	KindInteraction Kind = iota
	KindPlaylist
	KindAnalysis
)

func (k Kind) String() string {
	switch k {
	case KindInteraction:
		return "interaction"
	case KindPlaylist:
		return "playlist"
	case KindAnalysis:
		return "analysis"
	default:
		return "unknown"
	}
}

// Job represents one background task. Only the fields for its Kind are set.
type Job struct {
	Kind        Kind
	UserID      string
	Interaction domain.Interaction
	Playlist    domain.Playlist
	TrackID     string
	PreviewURL  string
}

// Store is the persistence the jobs write to.
type Store interface {
	ports.InteractionLog
	ports.PlaylistRepository
	ports.AnalysisRepository
}

// AnalyzeFunc returns the loudness estimate in [0,1] of the preview at url.
type AnalyzeFunc func(ctx context.Context, url string) (float64, error)

// Pool manages background workers for async jobs.
type Pool struct {
	store      Store
	analyze    AnalyzeFunc
	jobTimeout time.Duration
	log        logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	jobs   chan Job
	wg     sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

func WithAnalyzer(fn AnalyzeFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.analyze = fn
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

// NewPool creates a worker pool with the given queue size.
func NewPool(store Store, queueSize int, opts ...Option) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		store:      store,
		analyze:    AnalyzePreview,
		jobTimeout: 30 * time.Second,
		log:        logrus.StandardLogger(),
		jobs:       make(chan Job, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.processJob(job)
			}
		}()
	}
}

// Stop closes the queue and waits for queued jobs to drain. Later submissions
// are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a job without blocking. It reports whether the job was queued.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WithField("kind", job.Kind.String()).Warn("worker: pool stopped, dropping job")
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.log.WithField("kind", job.Kind.String()).Warn("worker: queue full, dropping job")
		return false
	}
}

func (p *Pool) LogInteraction(in domain.Interaction) {
	p.Submit(Job{Kind: KindInteraction, UserID: in.UserID, Interaction: in})
}

func (p *Pool) SavePlaylist(userID string, pl domain.Playlist) {
	p.Submit(Job{Kind: KindPlaylist, UserID: userID, Playlist: pl})
}

// AnalyzePreviews queues one analysis per track that has a preview and has
// not been analyzed yet.
func (p *Pool) AnalyzePreviews(tracks []domain.Track) {
	for _, t := range tracks {
		if t.PreviewURL == "" {
			continue
		}
		p.Submit(Job{Kind: KindAnalysis, TrackID: t.ID, PreviewURL: t.PreviewURL})
	}
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancel()

	log := p.log.WithField("kind", job.Kind.String())
	var err error
	switch job.Kind {
	case KindInteraction:
		err = p.store.LogInteraction(ctx, job.Interaction)
	case KindPlaylist:
		err = p.store.SavePlaylist(ctx, job.UserID, job.Playlist)
		log = log.WithField("playlist_id", job.Playlist.ID)
	case KindAnalysis:
		log = log.WithField("track_id", job.TrackID)
		err = p.analyzeTrack(ctx, job)
	default:
		log.Warn("worker: unknown job kind")
		return
	}
	if err != nil {
		log.WithError(err).Warn("worker: job failed")
		return
	}
	log.Debug("worker: job done")
}

func (p *Pool) analyzeTrack(ctx context.Context, job Job) error {
	if _, err := p.store.GetTrackAnalysis(ctx, job.TrackID); err == nil {
		return nil
	}
	energy, err := p.analyze(ctx, job.PreviewURL)
	if err != nil {
		return err
	}
	return p.store.SaveTrackAnalysis(ctx, domain.TrackAnalysis{TrackID: job.TrackID, Energy: energy})
}
