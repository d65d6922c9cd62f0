// Package pipeline fans validated filings out to output writers, dropping
// duplicates along the way. Searches produce overlapping result sets (the
// same filing surfaces for a parent company and its subsidiaries), so
// de-duplication lives here rather than in any single scraper.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
)

// ErrClosed is returned when Process is called after shutdown.
var ErrClosed = errors.New("pipeline: closed")

// OutputWriter receives batches of filings. Implementations must be safe
// for concurrent Write calls.
type OutputWriter interface {
	Write(filings []models.UCCFiling) error
	Close() error
	Validate() error
}

// Options tunes pipeline buffering.
type Options struct {
	// BufferSize is the channel capacity between producers and workers.
	BufferSize int
	// BatchSize is how many filings a worker accumulates before writing.
	BatchSize int
	// DedupeSize bounds the duplicate-tracking cache. Long runs across many
	// companies stay at a fixed memory ceiling; an evicted key can, at
	// worst, let an old duplicate through again.
	DedupeSize int
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Processed  int64
	Duplicates int64
	Dropped    int64
}

// Pipeline coordinates de-duplication, batching, and output writing.
type Pipeline struct {
	writer    OutputWriter
	filingCh  chan models.UCCFiling
	batchSize int

	seen *lru.Cache[string, struct{}]

	processed  atomic.Int64
	duplicates atomic.Int64
	dropped    atomic.Int64

	wg sync.WaitGroup

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New builds a pipeline around writer.
func New(writer OutputWriter, opts Options) (*Pipeline, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 4096
	}

	seen, err := lru.New[string, struct{}](opts.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("build dedupe cache: %w", err)
	}

	return &Pipeline{
		writer:    writer,
		filingCh:  make(chan models.UCCFiling, opts.BufferSize),
		batchSize: opts.BatchSize,
		seen:      seen,
		shutdown:  make(chan struct{}),
	}, nil
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues filings for downstream writing.
func (p *Pipeline) Process(filings []models.UCCFiling) error {
	if len(filings) == 0 {
		return nil
	}

	p.mu.Lock()
	closed, err := p.closed, p.err
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if closed {
		return ErrClosed
	}

	for _, filing := range filings {
		if err := p.enqueue(filing); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to drain and prevents further submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.filingCh)
	})

	p.wg.Wait()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats snapshots the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:  p.processed.Load(),
		Duplicates: p.duplicates.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]models.UCCFiling, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for filing := range p.filingCh {
		if !p.admit(filing) {
			continue
		}
		batch = append(batch, filing)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// admit drops unidentifiable records and duplicates.
func (p *Pipeline) admit(filing models.UCCFiling) bool {
	if filing.FilingNumber == "" && filing.DebtorName == "" {
		p.dropped.Add(1)
		return false
	}

	if existed, _ := p.seen.ContainsOrAdd(dedupeKey(filing), struct{}{}); existed {
		p.duplicates.Add(1)
		slog.Debug("duplicate filing dropped",
			slog.String("state", filing.State),
			slog.String("filing_number", filing.FilingNumber),
		)
		return false
	}

	p.processed.Add(1)
	return true
}

// dedupeKey identifies one filing. Filing numbers are unique per state, not
// globally; records without a number fall back to debtor and date.
func dedupeKey(filing models.UCCFiling) string {
	if filing.FilingNumber != "" {
		return filing.State + "/" + filing.FilingNumber
	}
	return filing.State + "/" + filing.DebtorName + "/" + filing.FilingDate
}

func (p *Pipeline) enqueue(filing models.UCCFiling) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrClosed
	case p.filingCh <- filing:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.filingCh)
	})
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}
