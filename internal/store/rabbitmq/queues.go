package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/persona-chat/internal/chat"
)

func RetryQueue(queue string) string { return queue + ".retry" }
func DeadQueue(queue string) string  { return queue + ".dlq" }

// DeclareQueues sets up the main queue, a TTL retry queue that dead-letters
// back into it, and the DLQ the main queue rejects into. Publisher and worker
// must declare with identical arguments.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(DeadQueue(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadQueue(queue), err)
	}

	if _, err := ch.QueueDeclare(RetryQueue(queue), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", RetryQueue(queue), err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadQueue(queue),
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

var ErrBadJob = errors.New("malformed job")

// Job kinds travel in the delivery's type property. An untyped delivery is a
// suggestion job.
const (
	KindSuggestion = "suggestion"
	KindExport     = "export"
)

func JobKind(d amqp.Delivery) string {
	if d.Type == "" {
		return KindSuggestion
	}
	return d.Type
}

// DecodeJob parses a suggestion job body.
func DecodeJob(body []byte) (chat.SuggestionJob, error) {
	var job chat.SuggestionJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("%w: %v", ErrBadJob, err)
	}
	if job.GlobalSessionID == "" {
		return job, fmt.Errorf("%w: global_session_id missing", ErrBadJob)
	}
	return job, nil
}

// DecodeExportJob parses a transcript export job body.
func DecodeExportJob(body []byte) (chat.ExportJob, error) {
	var job chat.ExportJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("%w: %v", ErrBadJob, err)
	}
	if job.UserEmail == "" || job.LoginSessionID == "" {
		return job, fmt.Errorf("%w: user_email and login_session_id are required", ErrBadJob)
	}
	return job, nil
}

// RetryCount reads how many times a delivery went through the retry queue.
func RetryCount(headers amqp.Table) int {
	deaths, ok := headers["x-death"].([]any)
	if !ok {
		return 0
	}
	n := 0
	for _, d := range deaths {
		t, ok := d.(amqp.Table)
		if !ok {
			continue
		}
		if q, _ := t["queue"].(string); !strings.HasSuffix(q, ".retry") {
			continue
		}
		if c, ok := t["count"].(int64); ok {
			n += int(c)
		}
	}
	return n
}
