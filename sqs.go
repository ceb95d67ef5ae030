package lambdafn

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// SQSRecords converts an SQS event to records. The record id is the SQS
// message id and Metadata holds the original events.SQSMessage.
func SQSRecords(evt events.SQSEvent) []Record {
	records := make([]Record, len(evt.Records))
	for i, m := range evt.Records {
		records[i] = Record{
			ID:         m.MessageId,
			Body:       m.Body,
			Attributes: m.Attributes,
			Metadata:   m,
		}
	}
	return records
}

// SQSInfo is an abridged, read-only view of the SQS message being handled.
type SQSInfo struct {
	MessageID      string
	ReceiptHandle  string
	MD5OfBody      string
	EventSourceARN string
	EventSource    string
	AWSRegion      string

	ApproximateReceiveCount          int64
	SentTimestamp                    time.Time
	SenderID                         string
	ApproximateFirstReceiveTimestamp time.Time

	// FIFO queues only.
	SequenceNumber         string
	MessageGroupID         string
	MessageDeduplicationID string
}

// SQSInfoFromContext returns details of the SQS message whose record is being
// handled. It reports false outside an SQS dispatch.
//
// Example:
//
//	func (h *Handler) Handle(ctx context.Context, m Message) error {
//	    if info, ok := lambdafn.SQSInfoFromContext(ctx); ok && info.ApproximateReceiveCount > 3 {
//	        zerolog.Ctx(ctx).Warn().Str("message_id", info.MessageID).Msg("message redelivered repeatedly")
//	    }
//	    ...
//	}
func SQSInfoFromContext(ctx context.Context) (SQSInfo, bool) {
	rec, ok := RecordFromContext(ctx)
	if !ok {
		return SQSInfo{}, false
	}
	m, ok := rec.Metadata.(events.SQSMessage)
	if !ok {
		return SQSInfo{}, false
	}
	return newSQSInfo(m), true
}

func newSQSInfo(m events.SQSMessage) SQSInfo {
	info := SQSInfo{
		MessageID:      m.MessageId,
		ReceiptHandle:  m.ReceiptHandle,
		MD5OfBody:      m.Md5OfBody,
		EventSourceARN: m.EventSourceARN,
		EventSource:    m.EventSource,
		AWSRegion:      m.AWSRegion,

		SenderID:               m.Attributes["SenderId"],
		SequenceNumber:         m.Attributes["SequenceNumber"],
		MessageGroupID:         m.Attributes["MessageGroupId"],
		MessageDeduplicationID: m.Attributes["MessageDeduplicationId"],
	}

	if n, ok := intAttribute(m.Attributes, "ApproximateReceiveCount"); ok {
		info.ApproximateReceiveCount = n
	}
	if n, ok := intAttribute(m.Attributes, "SentTimestamp"); ok {
		info.SentTimestamp = time.UnixMilli(n).UTC()
	}
	if n, ok := intAttribute(m.Attributes, "ApproximateFirstReceiveTimestamp"); ok {
		info.ApproximateFirstReceiveTimestamp = time.UnixMilli(n).UTC()
	}
	return info
}

// intAttribute ignores malformed values; attributes are informational.
func intAttribute(attrs map[string]string, key string) (int64, bool) {
	s, ok := attrs[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SQSFunction returns a Lambda handler for SQS event source mappings.
//
// With batch response enabled the handler never fails because of a single
// message: it returns the failed message ids so SQS redelivers only those.
// The event source mapping must have ReportBatchItemFailures enabled.
// Without it, the first failure is returned and SQS redelivers the whole
// batch.
//
// Example:
//
//	d, err := lambdafn.New[OrderPlaced](reg, lambdafn.WithBatchResponse(true))
//	if err != nil {
//	    log.Fatal().Err(err).Msg("configure dispatcher")
//	}
//	lambda.Start(lambdafn.SQSFunction(d))
func SQSFunction[T any](d *Dispatcher[T]) func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		resp, err := d.Dispatch(ctx, SQSRecords(evt))
		if err != nil {
			return events.SQSEventResponse{}, err
		}
		return resp.SQSEventResponse(), nil
	}
}
