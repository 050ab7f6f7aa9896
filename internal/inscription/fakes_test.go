package inscription

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/ordvault/internal/logging"
	"github.com/dmitrijs2005/ordvault/internal/models"
	"github.com/dmitrijs2005/ordvault/internal/storage"
	"github.com/stretchr/testify/require"
)

type backendError struct{ code int }

func (e *backendError) Error() string { return fmt.Sprintf("backend error %d", e.code) }

type fakeSubmitter struct {
	mu        sync.Mutex
	submitErr error
	order     *Order
	statuses  []*OrderStatus
	statusErr []error
	calls     int
	submitted []SubmitRequest
}

func (f *fakeSubmitter) Submit(ctx context.Context, req SubmitRequest) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.order != nil {
		return f.order, nil
	}
	return &Order{OrderID: "order-1", PaymentAddress: "tb1qpay", TotalCost: 4200, FeeRate: "12"}, nil
}

// Status replays statuses (and statusErr) by call index; the last entry repeats.
func (f *fakeSubmitter) Status(ctx context.Context, orderID string) (*OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++

	if i < len(f.statusErr) && f.statusErr[i] != nil {
		return nil, f.statusErr[i]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.statuses) == 0 {
		return &OrderStatus{State: OrderPending}, nil
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type estimatingSubmitter struct {
	*fakeSubmitter
	estimates int
	err       error
}

func (e *estimatingSubmitter) Estimate(ctx context.Context, req SubmitRequest) (*Estimate, error) {
	e.estimates++
	if e.err != nil {
		return nil, e.err
	}
	return &Estimate{TotalCost: 1000, InscriptionSize: len(req.Content)}, nil
}

// recordingTimer fires immediately and remembers every requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time { return t.c }

func (t *recordingTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memBlobs) Put(ctx context.Context, hash string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[hash] = payload
	return "inscriptions/" + hash, nil
}

func (m *memBlobs) Get(ctx context.Context, hash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[hash]
	if !ok {
		return nil, errors.New("missing")
	}
	return b, nil
}

type presigningBlobs struct {
	memBlobs
	presignErr error
}

func (p *presigningBlobs) PresignGet(ctx context.Context, hash string, ttl time.Duration) (string, error) {
	if p.presignErr != nil {
		return "", p.presignErr
	}
	return "https://blobs.example/" + hash + "?ttl=" + ttl.String(), nil
}

type failingStore struct{ storage.Repository }

func (failingStore) Save(ctx context.Context, rec *models.Inscription) error {
	return errors.New("disk full")
}

type env struct {
	svc   *Service
	store *storage.FileRepository
	cache *storage.FileCache
	timer *recordingTimer
	dir   string
}

func newEnv(t *testing.T, opts Options, sub Submitter, extra ...Option) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		store: storage.NewFileRepository(filepath.Join(dir, "inscriptions.json")),
		cache: storage.NewFileCache(filepath.Join(dir, "inscriptions")),
		timer: newRecordingTimer(),
		dir:   dir,
	}

	all := append([]Option{
		WithCache(e.cache),
		WithTimer(func() backoff.Timer { return e.timer }),
	}, extra...)

	svc, err := NewService(opts, e.store, sub, logging.Discard(), all...)
	require.NoError(t, err)
	e.svc = svc
	return e
}
