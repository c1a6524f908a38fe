package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/persona-chat/internal/chat"
)

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishSuggestionJob queues a suggestion refresh for the worker.
func (p *Publisher) PublishSuggestionJob(ctx context.Context, job chat.SuggestionJob) error {
	return p.publish(ctx, KindSuggestion, job.ID, job)
}

// PublishExportJob queues a transcript export for the worker.
func (p *Publisher) PublishExportJob(ctx context.Context, job chat.ExportJob) error {
	return p.publish(ctx, KindExport, job.ID, job)
}

func (p *Publisher) publish(ctx context.Context, kind, id string, job any) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         kind,
			MessageId:    id,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
