package inscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/encoder"
	"github.com/dmitrijs2005/ordvault/internal/logging"
	"github.com/dmitrijs2005/ordvault/internal/models"
	"github.com/dmitrijs2005/ordvault/internal/storage"
)

const (
	DefaultMaxAttempts  = 30
	DefaultPollInterval = 10 * time.Second
	DefaultMaxSize      = 200_000
	DefaultFeeRate      = "medium"
	DefaultProtocol     = "ordvault-v1"
	DefaultContentType  = "text/plain;charset=utf-8"
)

type Options struct {
	Network        string
	Mock           bool
	MaxSize        int
	MaxAttempts    int
	PollInterval   time.Duration
	FeeRate        string
	ReceiveAddress string
	Protocol       string
	Threshold      int
}

func (o Options) withDefaults() Options {
	if o.Network == "" {
		o.Network = NetworkSignet
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.FeeRate == "" {
		o.FeeRate = DefaultFeeRate
	}
	if o.Protocol == "" {
		o.Protocol = DefaultProtocol
	}
	return o
}

type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithBlobStore(b BlobStore) Option { return func(s *Service) { s.blobs = b } }

func WithSigner(sg Signer) Option { return func(s *Service) { s.signer = sg } }

// WithTimer replaces the timer used between status checks.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(s *Service) { s.newTimer = newTimer }
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service is the inscription orchestrator. It holds no per-request state, so
// one instance serves any number of concurrent inscriptions.
type Service struct {
	opts      Options
	policy    encoder.Policy
	store     storage.Repository
	submitter Submitter
	cache     Cache
	blobs     BlobStore
	signer    Signer
	log       logging.Logger
	now       func() time.Time
	newTimer  func() backoff.Timer
}

// NewService builds an orchestrator. A nil submitter or opts.Mock selects mock
// mode.
func NewService(opts Options, store storage.Repository, submitter Submitter, log logging.Logger, extra ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: inscription store is required", common.ErrValidation)
	}
	opts = opts.withDefaults()
	if !ValidNetwork(opts.Network) {
		return nil, fmt.Errorf("%w: unknown network %q", common.ErrValidation, opts.Network)
	}

	s := &Service{
		opts:      opts,
		policy:    encoder.NewPolicy(opts.Threshold),
		store:     store,
		submitter: submitter,
		log:       log.With("module", "inscription", "network", opts.Network),
		now:       time.Now,
		newTimer:  func() backoff.Timer { return nil },
	}
	for _, o := range extra {
		o(s)
	}
	return s, nil
}

func (s *Service) Network() string { return s.opts.Network }

// MockMode reports whether inscriptions are simulated locally.
func (s *Service) MockMode() bool { return s.opts.Mock || s.submitter == nil }

// Inscribe runs one inscription attempt to completion in the calling
// goroutine. Use Start to run it as a background task.
func (s *Service) Inscribe(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, func(State) {})
}

func (s *Service) run(ctx context.Context, req Request, setState func(State)) (*Result, error) {
	setState(StateInit)

	if err := s.validate(req); err != nil {
		setState(StateFailed)
		return nil, err
	}
	if req.ContentType == "" {
		req.ContentType = DefaultContentType
	}
	enc := s.policy.Encode(req.Payload)

	var (
		res *Result
		err error
	)
	if s.MockMode() {
		setState(StateMock)
		res, err = s.mockInscribe(ctx, req, enc)
	} else {
		res, err = s.realInscribe(ctx, req, enc, setState)
	}

	if err != nil {
		setState(terminalState(err))
		return nil, err
	}
	setState(StateCompleted)
	return res, nil
}

func terminalState(err error) State {
	if errors.Is(err, common.ErrCancelled) || errors.Is(err, context.Canceled) {
		return StateCancelled
	}
	return StateFailed
}

func (s *Service) validate(req Request) error {
	if len(req.Payload) == 0 {
		return fmt.Errorf("%w: payload is empty", common.ErrValidation)
	}
	if len(req.Payload) > s.opts.MaxSize {
		return fmt.Errorf("%w: content too large for inscription (%d bytes, max %d)",
			common.ErrValidation, len(req.Payload), s.opts.MaxSize)
	}
	return nil
}

func (s *Service) mockInscribe(ctx context.Context, req Request, enc encoder.Encoded) (*Result, error) {
	rec := s.newRecord(req, enc)
	rec.InscriptionID = MockID(rec.CreatedAt)
	rec.Mock = true

	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "mock inscription created", "inscription_id", rec.InscriptionID, "size", rec.SizeBytes, "mode", rec.StorageMode)
	return s.result(rec, ""), nil
}

func (s *Service) realInscribe(ctx context.Context, req Request, enc encoder.Encoded, setState func(State)) (*Result, error) {
	setState(StateSubmitting)

	sreq := SubmitRequest{
		Content:        enc.OnChain,
		ContentType:    req.ContentType,
		ReceiveAddress: s.opts.ReceiveAddress,
		FeeRate:        s.opts.FeeRate,
		Metadata: map[string]string{
			"protocol":    s.opts.Protocol,
			"timestamp":   s.now().UTC().Format(time.RFC3339),
			"contentHash": enc.ContentHash,
		},
	}
	for k, v := range req.Metadata {
		if _, reserved := sreq.Metadata[k]; !reserved {
			sreq.Metadata[k] = v
		}
	}

	s.estimate(ctx, sreq)

	order, err := s.submitter.Submit(ctx, sreq)
	if err != nil {
		if errors.Is(err, common.ErrValidation) || errors.Is(err, common.ErrSubmission) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrSubmission, err)
	}
	if order == nil || order.OrderID == "" {
		return nil, fmt.Errorf("%w: unexpected order response (missing order id)", common.ErrSubmission)
	}

	s.log.Info(ctx, "inscription order created",
		"order_id", order.OrderID, "payment_address", order.PaymentAddress,
		"total_cost", order.TotalCost, "inscription_size", order.InscriptionSize)

	setState(StatePolling)
	status, err := s.poll(ctx, order.OrderID)
	if err != nil {
		s.log.Warn(ctx, "inscription did not complete", "order_id", order.OrderID, "kind", common.KindOf(err), "error", err)
		return nil, err
	}

	rec := s.newRecord(req, enc)
	rec.OrderID = order.OrderID
	rec.InscriptionID = status.InscriptionID
	if status.TxID != "" {
		txid := status.TxID
		rec.TxID = &txid
		if rec.InscriptionID == "" {
			rec.InscriptionID = txid + "i0"
		}
	}
	if rec.InscriptionID == "" {
		return nil, fmt.Errorf("%w: order %s completed without an inscription id", common.ErrInscriptionFailed, order.OrderID)
	}
	rec.Fees = models.Fees{Total: order.TotalCost, Rate: order.FeeRate}
	if rec.Fees.Rate == "" {
		rec.Fees.Rate = s.opts.FeeRate
	}

	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "inscription completed", "inscription_id", rec.InscriptionID, "order_id", rec.OrderID)
	return s.result(rec, order.PaymentAddress), nil
}

// estimate logs the expected cost. Failures never block the submission.
func (s *Service) estimate(ctx context.Context, req SubmitRequest) {
	est, ok := s.submitter.(Estimator)
	if !ok {
		return
	}

	e, err := est.Estimate(ctx, req)
	if err != nil {
		s.log.Warn(ctx, "cost estimation failed, using size based estimate",
			"error", err, "estimated_cost", int64(len(req.Content))*10)
		return
	}
	s.log.Info(ctx, "estimated inscription cost",
		"total_cost", e.TotalCost, "inscription_size", e.InscriptionSize,
		"network_fee", e.NetworkFee, "service_fee", e.ServiceFee)
}

var errStillPending = errors.New("order still pending")

// poll checks the order status up to MaxAttempts times. Status-check errors
// are retried silently; only an explicit failure ends polling early.
func (s *Service) poll(ctx context.Context, orderID string) (*OrderStatus, error) {
	attempt := 0
	var lastErr error

	op := func() (*OrderStatus, error) {
		attempt++
		st, err := s.submitter.Status(ctx, orderID)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", common.ErrTransientPoll, err)
			s.log.Debug(ctx, "status check failed (will retry)", "order_id", orderID, "attempt", attempt, "error", err)
			return nil, lastErr
		}

		s.log.Debug(ctx, "inscription status", "order_id", orderID, "status", st.State,
			"attempt", attempt, "max_attempts", s.opts.MaxAttempts)

		switch st.State {
		case OrderCompleted:
			return st, nil
		case OrderFailed:
			msg := st.Error
			if msg == "" {
				msg = "order reported failed"
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", common.ErrInscriptionFailed, msg))
		default:
			lastErr = errStillPending
			return nil, errStillPending
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(newGrowingBackOff(s.opts.PollInterval), uint64(s.opts.MaxAttempts-1)),
		ctx,
	)

	st, err := backoff.RetryNotifyWithTimerAndData(op, b, nil, s.newTimer())
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, common.ErrInscriptionFailed):
		return nil, err
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: polling order %s after %d attempts", common.ErrCancelled, orderID, attempt)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: deadline reached polling order %s after %d attempts", common.ErrTimeout, orderID, attempt)
	default:
		return nil, fmt.Errorf("%w: order %s unresolved after %d attempts: %v", common.ErrTimeout, orderID, attempt, lastErr)
	}
}

func (s *Service) newRecord(req Request, enc encoder.Encoded) *models.Inscription {
	return &models.Inscription{
		ContentHash: enc.ContentHash,
		StorageMode: enc.Mode,
		OnChain:     enc.OnChain,
		Network:     s.opts.Network,
		CreatedAt:   s.now().UTC(),
		SizeBytes:   len(req.Payload),
		ContentType: req.ContentType,
		Content:     req.Payload,
	}
}

// persist attests the record, copies hash-only payloads off-chain and saves
// it. Only the store write is fatal.
func (s *Service) persist(ctx context.Context, rec *models.Inscription) error {
	if s.signer != nil {
		att, err := s.signer.Sign(rec.ContentHash)
		if err != nil {
			return fmt.Errorf("attest inscription: %w", err)
		}
		rec.Attestation = att
	}

	if s.blobs != nil && rec.StorageMode == encoder.ModeHashOnly {
		if key, err := s.blobs.Put(ctx, rec.ContentHash, rec.Content); err != nil {
			s.log.Warn(ctx, "off-chain copy failed", "inscription_id", rec.InscriptionID, "error", err)
		} else {
			s.log.Debug(ctx, "off-chain copy stored", "inscription_id", rec.InscriptionID, "key", key)
		}
	}

	if err := s.store.Save(ctx, rec); err != nil {
		if errors.Is(err, common.ErrStore) || errors.Is(err, common.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrStore, err)
	}

	if s.cache != nil {
		if err := s.cache.Put(rec); err != nil {
			s.log.Warn(ctx, "inscription file cache write failed", "inscription_id", rec.InscriptionID, "error", err)
		}
	}
	return nil
}

func (s *Service) result(rec *models.Inscription, paymentAddress string) *Result {
	res := &Result{
		InscriptionID:  rec.InscriptionID,
		TxID:           rec.TxID,
		OrderID:        rec.OrderID,
		PaymentAddress: paymentAddress,
		Network:        rec.Network,
		Fees:           rec.Fees,
		ContentHash:    rec.ContentHash,
		StorageMode:    rec.StorageMode,
		SizeBytes:      rec.SizeBytes,
		CreatedAt:      rec.CreatedAt,
		Mock:           rec.Mock,
	}
	if rec.TxID != nil {
		res.ExplorerURL = ExplorerURL(rec.Network, *rec.TxID)
	}
	return res
}
