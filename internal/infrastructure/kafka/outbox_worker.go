package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	defaultOutboxBatchSize = 10
	staleAfterSeconds      = 60
	releaseStaleInterval   = 30 * time.Second
	notifyWaitTimeout      = 30 * time.Second
	reconnectBase          = 2 * time.Second
	reconnectMax           = 30 * time.Second
)

// OutboxWorker переносит события из outbox_events в Kafka.
// Новые события приходят через LISTEN/NOTIFY, а при старте вычитываются накопившиеся.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	logger    logger.Logger
	producer  usecase.MessageProducer
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dbConnStr string
	batchSize int
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
	batchSize int,
) *OutboxWorker {
	if batchSize <= 0 {
		batchSize = defaultOutboxBatchSize
	}

	return &OutboxWorker{
		repo:      repo,
		logger:    logger,
		producer:  producer,
		stop:      make(chan struct{}),
		dbConnStr: dbConnStr,
		batchSize: batchSize,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(3)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	// Запускаем слушатель уведомлений
	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()

	// Возвращаем в очередь события, зависшие в PROCESSING после падения реплики
	go func() {
		defer w.wg.Done()
		w.releaseStaleLoop(ctx)
	}()
}

func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("draining pending outbox events on startup")
	w.drain(ctx)

	select {
	case <-ctx.Done():
	case <-w.stop:
	}
	w.logger.Infof("outbox worker stopped")
}

// drain обрабатывает пачки, пока в outbox есть события.
func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("outbox batch failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) releaseStaleLoop(ctx context.Context) {
	ticker := time.NewTicker(jitter.Duration(releaseStaleInterval, jitter.DefaultJitter))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			released, err := w.repo.ReleaseStale(ctx, staleAfterSeconds)
			if err != nil {
				w.logger.Warnf("release stale outbox events: %v", err)
				continue
			}
			if released > 0 {
				w.logger.Infof("released %d stale outbox events", released)
				w.drain(ctx)
			}
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		var err error
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN "+pgdb.OutboxChannel); err != nil {
			conn.Close(ctx)
			conn = nil
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("subscribed to %q channel", pgdb.OutboxChannel)
		return nil
	}

	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()

	for attempt := 0; ; {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		if conn == nil {
			if err := connect(); err != nil {
				delay := jitter.ExponentialBackoff(reconnectBase, reconnectMax, attempt, jitter.DefaultJitter)
				w.logger.Warnf("outbox listener connect failed: %v, retry in %s", err, delay)
				attempt++
				if !w.sleep(ctx, delay) {
					return
				}
				continue
			}
			attempt = 0
			// За время без подписки могли накопиться события
			w.drain(ctx)
		}

		waitCtx, cancel := context.WithTimeout(ctx, notifyWaitTimeout)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("outbox listener connection lost: %v, reconnecting", err)
			conn.Close(ctx)
			conn = nil
			continue
		}

		if notif != nil && notif.Channel == pgdb.OutboxChannel {
			w.logger.Debugf("received outbox notification, draining outbox events")
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.stop:
		return false
	}
}

// processBatch отправляет одну пачку событий. Неотправленные события остаются в PROCESSING
// и возвращаются в очередь через ReleaseStale.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.batchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	sent := 0
	for _, event := range events {
		if err := w.SendBytes(ctx, event.ProductID, event.Payload); err != nil {
			if isRetryableError(err) {
				w.logger.Warnf("temporary kafka failure for event %s, will retry: %v", event.EventID, err)
			} else {
				w.logger.Errorf(err, "permanent kafka failure for event %s", event.EventID)
			}
			continue
		}

		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
			continue
		}
		sent++
	}

	// Если ни одно событие не ушло, дальнейший drain только крутит одну и ту же ошибку
	return sent > 0 && len(events) == w.batchSize, nil
}

func (w *OutboxWorker) SendBytes(ctx context.Context, productID int64, payload []byte) error {
	return w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(productID, payload))
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
