package queue

import (
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"weatherscape/internal/types"
)

// MessageLag returns the time between a message's SQS enqueue and now, read
// from the SentTimestamp attribute. ok=false when the attribute is missing
// or malformed.
func MessageLag(record events.SQSMessage, now time.Time) (time.Duration, bool) {
	raw, ok := record.Attributes["SentTimestamp"]
	if !ok {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return now.Sub(time.UnixMilli(ms)), true
}

// BatchOutcome accumulates per-message results while a batch is processed
// concurrently. All four consumer stages share the same message state
// machine: received -> processing -> acked | retry-requested. Acked messages
// are simply absent from the partial batch response; retry-requested ones are
// reported as batch item failures so SQS redelivers only them.
//
// Malformed messages (unparseable or schema-invalid) are a third outcome:
// they count as errors in the status record but are acked, because
// redelivering a message that can never parse would retry it forever.
type BatchOutcome struct {
	mu       sync.Mutex
	failures []events.SQSBatchItemFailure
	success  int
	errors   int
	messages []string
}

// Ack records a successfully processed message.
func (o *BatchOutcome) Ack() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.success++
}

// Retry records a failed message that should be redelivered.
func (o *BatchOutcome) Retry(messageID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors++
	o.messages = append(o.messages, err.Error())
	o.failures = append(o.failures, events.SQSBatchItemFailure{ItemIdentifier: messageID})
}

// AckMalformed records a permanently unprocessable message: counted as an
// error, not redelivered.
func (o *BatchOutcome) AckMalformed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors++
	o.messages = append(o.messages, err.Error())
}

// RetryAll marks every message in the batch for redelivery without
// processing. Used for batch-level failures such as missing provider
// credentials.
func (o *BatchOutcome) RetryAll(records []events.SQSMessage, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors += len(records)
	o.messages = append(o.messages, err.Error())
	for _, r := range records {
		o.failures = append(o.failures, events.SQSBatchItemFailure{ItemIdentifier: r.MessageId})
	}
}

// Response builds the Lambda partial batch response.
func (o *BatchOutcome) Response() events.SQSEventResponse {
	o.mu.Lock()
	defer o.mu.Unlock()
	return events.SQSEventResponse{BatchItemFailures: o.failures}
}

// Counts returns the success/error split.
func (o *BatchOutcome) Counts() (success, errors int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.success, o.errors
}

// StatusRecord summarizes the batch for the stage's status entry.
func (o *BatchOutcome) StatusRecord(ranAt time.Time, total int) types.StatusRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.StatusRecord{
		LastRunAt:    ranAt,
		Totals:       total,
		SuccessCount: o.success,
		ErrorCount:   o.errors,
		Errors:       o.messages,
	}
}
