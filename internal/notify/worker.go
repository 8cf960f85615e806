package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/store"
)

type WorkerConfig struct {
	BatchSize   int
	MaxAttempts int
	// Lease is how long a claimed row is reserved for this worker. A row that
	// is neither sent nor failed by then is handed out again.
	Lease time.Duration
	// BaseBackoff is the delay before the first retry; each later retry
	// doubles it up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Now         func() time.Time
}

// Worker drains the notification outbox.
type Worker struct {
	store       store.Store
	mailer      Mailer
	batchSize   int
	maxAttempts int
	lease       time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

func NewWorker(s store.Store, mailer Mailer, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	w := &Worker{
		store:       s,
		mailer:      mailer,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		lease:       cfg.Lease,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		logger:      logger.With().Str("component", "outbox").Logger(),
		now:         cfg.Now,
	}
	if w.batchSize <= 0 {
		w.batchSize = 50
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = 5
	}
	if w.lease <= 0 {
		w.lease = 5 * time.Minute
	}
	if w.baseBackoff <= 0 {
		w.baseBackoff = 30 * time.Second
	}
	if w.maxBackoff <= 0 {
		w.maxBackoff = time.Hour
	}
	if w.maxBackoff < w.baseBackoff {
		w.maxBackoff = w.baseBackoff
	}
	if w.now == nil {
		w.now = func() time.Time { return time.Now().UTC() }
	}
	return w
}

type RunResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Dead   int `json:"dead"`
}

// Run delivers one batch. Rows are leased in a short transaction, sent with
// no transaction open, and each outcome is recorded in its own transaction.
// A crash between send and mark redelivers the message after the lease.
func (w *Worker) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	var batch []models.Notification
	err := w.store.WithTx(ctx, func(q store.Queries) error {
		var err error
		batch, err = q.ClaimNotifications(ctx, w.batchSize, w.now(), w.lease)
		return err
	})
	if err != nil {
		return res, err
	}
	for _, n := range batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.deliver(ctx, n, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (w *Worker) deliver(ctx context.Context, n models.Notification, res *RunResult) error {
	sendErr := w.mailer.Send(ctx, Message{
		Kind:    n.Kind,
		PQRID:   n.PQRID,
		To:      n.Recipient,
		Subject: n.Subject,
		Body:    n.Body,
	})
	if sendErr == nil {
		res.Sent++
		return w.store.WithTx(ctx, func(q store.Queries) error {
			return q.MarkNotificationSent(ctx, n.ID, w.now())
		})
	}

	attempt := n.Attempts + 1
	dead := attempt >= w.maxAttempts
	if dead {
		res.Dead++
	} else {
		res.Failed++
	}
	retryAt := w.now().Add(w.backoff(attempt))
	w.logger.Warn().
		Err(sendErr).
		Str("notification_id", n.ID).
		Str("kind", n.Kind).
		Int("attempt", attempt).
		Bool("dead", dead).
		Time("retry_at", retryAt).
		Msg("notification delivery failed")
	return w.store.WithTx(ctx, func(q store.Queries) error {
		return q.MarkNotificationFailed(ctx, n.ID, sendErr.Error(), dead, retryAt)
	})
}

// backoff is the wait after the given failed attempt, counted from 1.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= w.maxBackoff {
			return w.maxBackoff
		}
	}
	return d
}

func Start(ctx context.Context, interval time.Duration, w *Worker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := w.Run(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("outbox worker error")
				continue
			}
			if res.Sent+res.Failed+res.Dead > 0 {
				w.logger.Info().Int("sent", res.Sent).Int("failed", res.Failed).Int("dead", res.Dead).Msg("outbox batch")
			}
		}
	}
}
