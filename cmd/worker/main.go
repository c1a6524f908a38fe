package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/persona-chat/internal/app"
	"github.com/suPer8Hu/persona-chat/internal/chat"
	"github.com/suPer8Hu/persona-chat/internal/config"
	"github.com/suPer8Hu/persona-chat/internal/db"
	"github.com/suPer8Hu/persona-chat/internal/logging"
	"github.com/suPer8Hu/persona-chat/internal/store/rabbitmq"
	"go.uber.org/zap"
)

const maxRetries = 3

var errDeliveriesClosed = errors.New("delivery channel closed")

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg config.Config, log *zap.Logger) error {
	if cfg.RabbitURL == "" {
		return errors.New("RABBIT_URL is required")
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.NewCore(ctx, cfg, gdb, log, app.CoreOptions{})
	if err != nil {
		return fmt.Errorf("wire core: %w", err)
	}
	defer core.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	//  strict concurrency control
	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Info("worker started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	h := &jobHandler{suggestions: core.Suggestions, exporter: core.Exporter}

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				start := time.Now()
				err := h.handle(ctx, d)
				switch {
				case err == nil:
					if err := d.Ack(false); err != nil {
						wlog.Warn("ack failed", zap.String("job_id", d.MessageId), zap.Error(err))
					}
				case errors.Is(err, rabbitmq.ErrBadJob):
					wlog.Warn("bad message", zap.Error(err))
					_ = d.Nack(false, false)
				case permanent(err) || rabbitmq.RetryCount(d.Headers) >= maxRetries:
					wlog.Error("job failed", zap.String("job_id", d.MessageId), zap.String("kind", rabbitmq.JobKind(d)),
						zap.Duration("cost", time.Since(start)), zap.Error(err))
					_ = d.Nack(false, false)
				default:
					wlog.Warn("job failed, retrying", zap.String("job_id", d.MessageId), zap.String("kind", rabbitmq.JobKind(d)),
						zap.Duration("cost", time.Since(start)), zap.Error(err))
					retry(ctx, ch, cfg.RabbitQueue, d, wlog)
				}
			}
		}(i)
	}

	err = dispatch(ctx, msgs, jobs)
	close(jobs)
	wg.Wait()
	if err != nil {
		return err
	}
	log.Info("worker shutting down")
	return nil
}

// dispatch feeds deliveries to the pool until ctx ends or the broker closes
// the delivery channel. The channel never reopens on its own, so a close is
// returned as an error and the process exits for its supervisor to restart.
func dispatch(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

type suggestionRefresher interface {
	Refresh(ctx context.Context, globalSessionID string) ([]string, error)
}

type transcriptExporter interface {
	Export(ctx context.Context, userEmail, loginSessionID string) (string, error)
}

type jobHandler struct {
	suggestions suggestionRefresher
	exporter    transcriptExporter
}

// handle runs one delivery by kind. A suggestion job whose message count is
// already behind the session is still useful: Refresh computes for the
// current state.
func (h *jobHandler) handle(ctx context.Context, d amqp.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	switch kind := rabbitmq.JobKind(d); kind {
	case rabbitmq.KindSuggestion:
		job, err := rabbitmq.DecodeJob(d.Body)
		if err != nil {
			return err
		}
		_, err = h.suggestions.Refresh(ctx, job.GlobalSessionID)
		return err
	case rabbitmq.KindExport:
		job, err := rabbitmq.DecodeExportJob(d.Body)
		if err != nil {
			return err
		}
		_, err = h.exporter.Export(ctx, job.UserEmail, job.LoginSessionID)
		return err
	default:
		return fmt.Errorf("%w: unknown kind %q", rabbitmq.ErrBadJob, kind)
	}
}

func permanent(err error) bool {
	return errors.Is(err, chat.ErrSessionNotFound) || errors.Is(err, chat.ErrInvalidInput)
}

// retry parks the delivery in the TTL retry queue, which dead-letters it back
// to the main queue.
func retry(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, log *zap.Logger) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := ch.PublishWithContext(pctx, "", rabbitmq.RetryQueue(queue), false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Type:         d.Type,
		MessageId:    d.MessageId,
		Headers:      d.Headers,
		Body:         d.Body,
		Expiration:   "5000",
		Timestamp:    time.Now(),
	})
	if err != nil {
		log.Warn("retry publish failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
