package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/models"
)

type collectingWriter struct {
	mu       sync.Mutex
	filings  []models.UCCFiling
	writeErr error
	closed   bool
}

func (w *collectingWriter) Write(filings []models.UCCFiling) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.filings = append(w.filings, filings...)
	return nil
}

func (w *collectingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *collectingWriter) Validate() error { return nil }

func (w *collectingWriter) written() []models.UCCFiling {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.UCCFiling, len(w.filings))
	copy(out, w.filings)
	return out
}

func filing(state, number, debtor string) models.UCCFiling {
	return models.UCCFiling{
		FilingNumber: number,
		DebtorName:   debtor,
		State:        state,
		Status:       models.StatusActive,
		FilingType:   models.TypeUCC1,
		ScrapedAt:    time.Now(),
	}
}

func TestPipelineWritesFilings(t *testing.T) {
	writer := &collectingWriter{}
	p, err := New(writer, Options{})
	require.NoError(t, err)
	p.Start(2)

	require.NoError(t, p.Process([]models.UCCFiling{
		filing("CA", "2024-001", "Acme Corp"),
		filing("CA", "2024-002", "Beta LLC"),
		filing("CA", "2024-003", "Gamma Inc"),
	}))
	require.NoError(t, p.Close())

	require.Len(t, writer.written(), 3)
	require.Equal(t, int64(3), p.Stats().Processed)
}

func TestPipelineDeduplicatesByFilingNumber(t *testing.T) {
	writer := &collectingWriter{}
	p, err := New(writer, Options{})
	require.NoError(t, err)
	p.Start(1)

	require.NoError(t, p.Process([]models.UCCFiling{filing("CA", "2024-001", "Acme Corp")}))
	require.NoError(t, p.Process([]models.UCCFiling{filing("CA", "2024-001", "Acme Corporation")}))
	require.NoError(t, p.Close())

	require.Len(t, writer.written(), 1)
	stats := p.Stats()
	require.Equal(t, int64(1), stats.Processed)
	require.Equal(t, int64(1), stats.Duplicates)
}

func TestPipelineDedupeKeyIsScopedToState(t *testing.T) {
	writer := &collectingWriter{}
	p, err := New(writer, Options{})
	require.NoError(t, err)
	p.Start(1)

	require.NoError(t, p.Process([]models.UCCFiling{
		filing("CA", "2024-001", "Acme Corp"),
		filing("TX", "2024-001", "Acme Corp"),
	}))
	require.NoError(t, p.Close())

	require.Len(t, writer.written(), 2, "filing numbers are only unique within a state")
}

func TestPipelineFallbackKeyWithoutFilingNumber(t *testing.T) {
	writer := &collectingWriter{}
	p, err := New(writer, Options{})
	require.NoError(t, err)
	p.Start(1)

	a := filing("CA", "", "Acme Corp")
	a.FilingDate = "2024-01-15"
	b := filing("CA", "", "Acme Corp")
	b.FilingDate = "2024-01-15"
	c := filing("CA", "", "Acme Corp")
	c.FilingDate = "2024-03-01"

	require.NoError(t, p.Process([]models.UCCFiling{a, b, c}))
	require.NoError(t, p.Close())

	require.Len(t, writer.written(), 2)
	require.Equal(t, int64(1), p.Stats().Duplicates)
}

func TestPipelineDropsUnidentifiableRecords(t *testing.T) {
	writer := &collectingWriter{}
	p, err := New(writer, Options{})
	require.NoError(t, err)
	p.Start(1)

	require.NoError(t, p.Process([]models.UCCFiling{{State: "CA"}}))
	require.NoError(t, p.Close())

	require.Empty(t, writer.written())
	require.Equal(t, int64(1), p.Stats().Dropped)
}

func TestPipelinePartialBatchFlushedOnClose(t *testing.T) {
	writer := &collectingWriter{}
	p, err := New(writer, Options{BatchSize: 64})
	require.NoError(t, err)
	p.Start(1)

	require.NoError(t, p.Process([]models.UCCFiling{
		filing("CA", "2024-001", "Acme Corp"),
		filing("CA", "2024-002", "Beta LLC"),
	}))
	require.NoError(t, p.Close())

	require.Len(t, writer.written(), 2)
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p, err := New(&collectingWriter{}, Options{})
	require.NoError(t, err)
	p.Start(1)
	require.NoError(t, p.Close())

	err = p.Process([]models.UCCFiling{filing("CA", "2024-001", "Acme Corp")})
	require.ErrorIs(t, err, ErrClosed)
}

func TestPipelineWriterErrorSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	writer := &collectingWriter{writeErr: boom}
	p, err := New(writer, Options{BatchSize: 1})
	require.NoError(t, err)
	p.Start(1)

	_ = p.Process([]models.UCCFiling{filing("CA", "2024-001", "Acme Corp")})

	err = p.Close()
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, p.Err(), boom)
}
