package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"widgetrag/internal/app"
	"widgetrag/internal/logger"
	"widgetrag/internal/platform/rabbitmq"
)

// DocumentProcessor runs the chunk and embed pipeline for one document.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID uint) error
}

// DocumentWorker consumes document jobs. Jobs are acked once the document
// reaches a terminal state and requeued while another processor holds the
// document or the worker is shutting down.
type DocumentWorker struct {
	conn         *amqp.Connection
	processor    DocumentProcessor
	queueName    string
	prefetch     int
	requeueDelay time.Duration
	logger       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDocumentWorker(conn *amqp.Connection, processor DocumentProcessor, queueName string, prefetch int, log *zap.Logger) *DocumentWorker {
	if prefetch <= 0 {
		prefetch = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentWorker{
		conn:         conn,
		processor:    processor,
		queueName:    queueName,
		prefetch:     prefetch,
		requeueDelay: time.Second,
		logger:       log.Named("document_worker"),
	}
}

func (w *DocumentWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("delivery channel closed")
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.logger.Info("document worker started", zap.String("queue", w.queueName), zap.Int("prefetch", w.prefetch))
	return nil
}

func (w *DocumentWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job rabbitmq.DocumentJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.DocumentID == 0 {
		w.logger.Error("drop malformed document job", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	log := w.logger.With(
		zap.String("job_id", job.JobID),
		zap.Uint("document_id", job.DocumentID),
		zap.String("reason", job.Reason),
	)
	err := w.processor.ProcessDocument(logger.ContextWithLogger(ctx, log), job.DocumentID)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, app.ErrDocumentBusy):
		log.Info("document busy, requeueing job")
		timer := time.NewTimer(w.requeueDelay)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
		_ = d.Nack(false, true)
	case ctx.Err() != nil:
		log.Info("worker stopping, requeueing job", zap.Error(err))
		_ = d.Nack(false, true)
	default:
		// The document already carries the error; a retry would repeat it.
		log.Warn("document job failed", zap.Error(err))
		_ = d.Ack(false)
	}
}

func (w *DocumentWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
