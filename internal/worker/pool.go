package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mkrylov/docpress/internal/compress"
	"github.com/mkrylov/docpress/internal/document"
	"github.com/mkrylov/docpress/internal/policy"
	"github.com/mkrylov/docpress/internal/queue"
	"github.com/mkrylov/docpress/internal/storage"
)

const (
	DefaultWorkers      = 4
	DefaultPollInterval = 5 * time.Second
	DefaultJobTimeout   = 2 * time.Minute
)

// Options tune the pool.
type Options struct {
	Workers      int
	PollInterval time.Duration
	JobTimeout   time.Duration
}

// Pool runs N workers that drain the compression queue. The store and the
// queue are the only shared mutable state; every transition spanning a job
// and its document commits in one transaction, and codec work runs outside
// any of them.
type Pool struct {
	db       *gorm.DB
	docs     document.Repository
	registry *policy.Registry
	jobs     queue.Queue
	store    storage.Storage
	logger   *log.Logger
	opts     Options

	wake chan struct{}
	wg   sync.WaitGroup
}

func NewPool(db *gorm.DB, docs document.Repository, registry *policy.Registry, jobs queue.Queue, store storage.Storage, logger *log.Logger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	return &Pool{
		db:       db,
		docs:     docs,
		registry: registry,
		jobs:     jobs,
		store:    store,
		logger:   logger,
		opts:     opts,
		wake:     make(chan struct{}, 1),
	}
}

// Wake nudges an idle worker. Safe to call from any goroutine; extra wakes
// while one is already pending are dropped.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Start runs the recovery sweep and launches the workers. It returns once
// all workers are up; Stop (or ctx cancellation) winds them down.
func (p *Pool) Start(ctx context.Context) error {
	if err := p.recover(ctx); err != nil {
		return fmt.Errorf("recovery sweep: %w", err)
	}

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
	return nil
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// recover requeues jobs orphaned in running state by a prior crash. Each
// consumes one retry attempt; jobs already at the limit go terminal failed
// together with their documents.
func (p *Pool) recover(ctx context.Context) error {
	var requeued int
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, failedDocs, err := p.jobs.WithTx(tx).RecoverOrphans(ctx)
		if err != nil {
			return err
		}
		requeued = n
		docs := p.docs.WithTx(tx)
		for _, docID := range failedDocs {
			if err := docs.MarkFailed(ctx, docID, "attempts exhausted after unclean shutdown"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if requeued > 0 {
		p.logger.Printf("recovery sweep requeued %d orphaned job(s)", requeued)
	}
	return nil
}

func (p *Pool) run(ctx context.Context, id int) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.jobs.Dequeue(ctx)
		if err != nil {
			p.logger.Printf("worker %d: dequeue: %v", id, err)
		} else if job != nil {
			p.process(ctx, job)
			// Drain the queue before going back to sleep.
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

// process drives one claimed job to a transition: completed, skipped,
// requeued or failed. A persistence error mid-flight abandons the job; the
// startup sweep reclaims it.
func (p *Pool) process(ctx context.Context, job *queue.Job) {
	doc, err := p.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		p.fail(ctx, job, fmt.Sprintf("load document: %v", err))
		return
	}

	if err := p.docs.MarkProcessing(ctx, doc.ID); err != nil {
		p.logger.Printf("mark processing %s: %v", doc.ID, err)
		return
	}

	pol, err := p.registry.Lookup(ctx, doc.TypeID)
	if err != nil {
		p.fail(ctx, job, fmt.Sprintf("policy lookup: %v", err))
		return
	}

	decision := policy.Decide(doc, pol)
	if !decision.Compress {
		p.skip(ctx, job, doc, decision.Reason)
		return
	}

	key, size, err := p.compressDocument(ctx, doc, decision)
	if errors.Is(err, errNotEffective) {
		p.skip(ctx, job, doc, err.Error())
		return
	}
	if err != nil {
		p.fail(ctx, job, err.Error())
		return
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.docs.WithTx(tx).MarkCompleted(ctx, doc.ID, key, size); err != nil {
			return err
		}
		return p.jobs.WithTx(tx).Complete(ctx, job.ID)
	})
	if err != nil {
		p.logger.Printf("commit completion for %s: %v", doc.ID, err)
		return
	}

	p.logger.Printf("compressed %s: %d -> %d bytes (%s)", doc.ID, doc.SizeBytes, size, decision.Method)
}

// compressDocument runs the codec under the per-job wall-clock timeout and
// writes the artifact. On timeout any partial output is discarded and the
// error feeds the standard retry path.
func (p *Pool) compressDocument(ctx context.Context, doc document.Document, decision policy.Decision) (string, int64, error) {
	codec, err := compress.New(decision.Method, decision.Level)
	if err != nil {
		return "", 0, err
	}

	original, err := p.store.Read(ctx, doc.OriginalPath)
	if err != nil {
		return "", 0, fmt.Errorf("read original: %w", err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.opts.JobTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := codec.Compress(original)
		done <- result{data: data, err: err}
	}()

	var compressed []byte
	select {
	case <-jobCtx.Done():
		return "", 0, fmt.Errorf("compression timed out after %s", p.opts.JobTimeout)
	case res := <-done:
		if res.err != nil {
			return "", 0, fmt.Errorf("codec %s: %w", decision.Method, res.err)
		}
		compressed = res.data
	}

	// An artifact no smaller than the original is a skip, not a success;
	// the caller's completed path must never reference it.
	if int64(len(compressed)) >= doc.SizeBytes {
		return "", 0, errNotEffective
	}

	key := storage.CompressedKey(doc.ID, decision.Method)
	if err := p.store.Write(jobCtx, key, compressed, doc.MimeType); err != nil {
		// Best effort; deterministic keys mean a retry overwrites anyway.
		_ = p.store.Remove(ctx, key)
		return "", 0, fmt.Errorf("write artifact: %w", err)
	}

	return key, int64(len(compressed)), nil
}

var errNotEffective = errors.New("compression not effective")

// skip commits the skip outcome: a successful terminal state, not a failure.
func (p *Pool) skip(ctx context.Context, job *queue.Job, doc document.Document, reason string) {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.docs.WithTx(tx).MarkSkipped(ctx, doc.ID, reason); err != nil {
			return err
		}
		return p.jobs.WithTx(tx).Complete(ctx, job.ID)
	})
	if err != nil {
		p.logger.Printf("commit skip for %s: %v", doc.ID, err)
		return
	}
	p.logger.Printf("skipped %s: %s", doc.ID, reason)
}

// fail records the attempt. The document goes terminal failed only when the
// job does; intermediate retries leave it processing.
func (p *Pool) fail(ctx context.Context, job *queue.Job, cause string) {
	if errors.Is(ctx.Err(), context.Canceled) {
		// Shutting down; leave the job running for the recovery sweep.
		return
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := p.jobs.WithTx(tx).FailRetry(ctx, job.ID, cause)
		if err != nil {
			return err
		}
		if updated.Status == queue.StatusFailed {
			return p.docs.WithTx(tx).MarkFailed(ctx, job.DocumentID, cause)
		}
		return nil
	})
	if err != nil {
		p.logger.Printf("record failure for job %s: %v", job.ID, err)
		return
	}
	p.logger.Printf("attempt failed for %s: %s", job.DocumentID, cause)
}
