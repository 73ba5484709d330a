package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ragdesk/internal/model"
)

// IngestProcessor runs one ingestion attempt for a document. A nil return
// settles the job; an error requeues nothing and drops the delivery.
type IngestProcessor interface {
	Process(ctx context.Context, documentID string) error
}

// IngestWorker consumes queued ingestion jobs and drives them through the
// processor. One delivery is handled at a time; per-document serialization
// is enforced by the processor's status claim, not by the queue.
type IngestWorker struct {
	conn       *amqp.Connection
	processor  IngestProcessor
	queueName  string
	jobTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, processor IngestProcessor, queueName string, jobTimeout time.Duration) *IngestWorker {
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	return &IngestWorker{
		conn:       conn,
		processor:  processor,
		queueName:  queueName,
		jobTimeout: jobTimeout,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
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

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
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
					return
				}

				var job model.IngestJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("worker decode ingest job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				jobCtx, cancelJob := context.WithTimeout(workerCtx, w.jobTimeout)
				err := w.processor.Process(jobCtx, job.DocumentID)
				cancelJob()
				if err != nil {
					log.Printf("worker ingest document %s failed: %v", job.DocumentID, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
