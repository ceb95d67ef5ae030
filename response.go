package lambdafn

import (
	"sync"

	"github.com/aws/aws-lambda-go/events"
)

// FailureEntry identifies one failed record.
type FailureEntry struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// BatchResponse reports which records of a batch failed so the platform
// redelivers only those. A record id that does not appear succeeded.
//
// The order of Failures is unspecified.
type BatchResponse struct {
	Failures []FailureEntry `json:"batchItemFailures"`
}

// IDs returns the identifiers of the failed records.
func (r BatchResponse) IDs() []string {
	ids := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		ids[i] = f.ItemIdentifier
	}
	return ids
}

// Empty reports whether every record succeeded.
func (r BatchResponse) Empty() bool { return len(r.Failures) == 0 }

// SQSEventResponse converts r to the partial batch response understood by
// an SQS event source mapping with ReportBatchItemFailures enabled.
func (r BatchResponse) SQSEventResponse() events.SQSEventResponse {
	resp := events.SQSEventResponse{
		BatchItemFailures: make([]events.SQSBatchItemFailure, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
			ItemIdentifier: f.ItemIdentifier,
		})
	}
	return resp
}

// failureCollector accumulates failures from concurrent workers. Each record
// is processed at most once per invocation, so entries are never deduplicated.
type failureCollector struct {
	mu       sync.Mutex
	failures []FailureEntry
}

func (c *failureCollector) add(id string) {
	c.mu.Lock()
	c.failures = append(c.failures, FailureEntry{ItemIdentifier: id})
	c.mu.Unlock()
}

func (c *failureCollector) response() BatchResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FailureEntry, len(c.failures))
	copy(out, c.failures)
	return BatchResponse{Failures: out}
}
