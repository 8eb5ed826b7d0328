package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func TestMessageLag(t *testing.T) {
	now := time.UnixMilli(10_000)

	lag, ok := MessageLag(events.SQSMessage{
		Attributes: map[string]string{"SentTimestamp": "7000"},
	}, now)
	if !ok || lag != 3*time.Second {
		t.Errorf("lag = %v ok=%v, want 3s", lag, ok)
	}

	if _, ok := MessageLag(events.SQSMessage{}, now); ok {
		t.Error("missing attribute must not resolve")
	}
	if _, ok := MessageLag(events.SQSMessage{
		Attributes: map[string]string{"SentTimestamp": "not-a-number"},
	}, now); ok {
		t.Error("malformed attribute must not resolve")
	}
}

func TestBatchOutcomeClassification(t *testing.T) {
	o := &BatchOutcome{}
	o.Ack()
	o.Ack()
	o.Retry("m3", fmt.Errorf("transient"))
	o.AckMalformed(fmt.Errorf("bad json"))

	resp := o.Response()
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m3" {
		t.Fatalf("only retried messages belong in the response: %v", resp.BatchItemFailures)
	}

	rec := o.StatusRecord(time.Now(), 4)
	if rec.SuccessCount != 2 || rec.ErrorCount != 2 || len(rec.Errors) != 2 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestBatchOutcomeRetryAll(t *testing.T) {
	records := []events.SQSMessage{{MessageId: "a"}, {MessageId: "b"}}
	o := &BatchOutcome{}
	o.RetryAll(records, fmt.Errorf("no credentials"))

	if len(o.Response().BatchItemFailures) != 2 {
		t.Fatal("every message must be redelivered")
	}
	rec := o.StatusRecord(time.Now(), 2)
	if rec.ErrorCount != 2 || rec.SuccessCount != 0 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestBatchOutcomeConcurrentUse(t *testing.T) {
	o := &BatchOutcome{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				o.Ack()
			} else {
				o.Retry(fmt.Sprintf("m%d", n), fmt.Errorf("fail %d", n))
			}
		}(i)
	}
	wg.Wait()

	success, errors := o.Counts()
	if success != 25 || errors != 25 {
		t.Errorf("counts = %d/%d, want 25/25", success, errors)
	}
}
