package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJob(t *testing.T) {
	job, err := DecodeJob([]byte(`{"job_id":"01J","global_session_id":"L1#C1","student_name":"asha-kumar","message_count":4}`))
	require.NoError(t, err)
	assert.Equal(t, "L1#C1", job.GlobalSessionID)
	assert.Equal(t, 4, job.MessageCount)

	_, err = DecodeJob([]byte(`{"job_id":"01J"}`))
	assert.ErrorIs(t, err, ErrBadJob)

	_, err = DecodeJob([]byte(`nope`))
	assert.ErrorIs(t, err, ErrBadJob)
}

func TestDecodeExportJob(t *testing.T) {
	job, err := DecodeExportJob([]byte(`{"job_id":"01K","user_email":"priya@example.org","login_session_id":"L1"}`))
	require.NoError(t, err)
	assert.Equal(t, "priya@example.org", job.UserEmail)
	assert.Equal(t, "L1", job.LoginSessionID)

	_, err = DecodeExportJob([]byte(`{"job_id":"01K","user_email":"priya@example.org"}`))
	assert.ErrorIs(t, err, ErrBadJob)

	_, err = DecodeExportJob([]byte(`[]`))
	assert.ErrorIs(t, err, ErrBadJob)
}

func TestJobKind(t *testing.T) {
	assert.Equal(t, KindSuggestion, JobKind(amqp.Delivery{}))
	assert.Equal(t, KindSuggestion, JobKind(amqp.Delivery{Type: KindSuggestion}))
	assert.Equal(t, KindExport, JobKind(amqp.Delivery{Type: KindExport}))
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, RetryCount(nil))

	headers := amqp.Table{"x-death": []any{
		amqp.Table{"queue": "suggestion_jobs.retry", "count": int64(2)},
		amqp.Table{"queue": "suggestion_jobs", "count": int64(1)},
	}}
	assert.Equal(t, 2, RetryCount(headers))
	assert.Equal(t, "suggestion_jobs.retry", RetryQueue("suggestion_jobs"))
	assert.Equal(t, "suggestion_jobs.dlq", DeadQueue("suggestion_jobs"))
}
