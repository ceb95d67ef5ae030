package lambdafn

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
)

// SNSRecords converts an SNS event to records. The record id is the SNS
// message id, the body is the notification message and Metadata holds the
// original events.SNSEventRecord.
func SNSRecords(evt events.SNSEvent) []Record {
	records := make([]Record, len(evt.Records))
	for i, r := range evt.Records {
		attrs := map[string]string{
			"Type":     r.SNS.Type,
			"TopicArn": r.SNS.TopicArn,
		}
		if r.SNS.Subject != "" {
			attrs["Subject"] = r.SNS.Subject
		}
		records[i] = Record{
			ID:         r.SNS.MessageID,
			Body:       r.SNS.Message,
			Attributes: attrs,
			Metadata:   r,
		}
	}
	return records
}

// SNSFunction returns a Lambda handler for SNS subscriptions.
//
// SNS has no partial batch response, so d must not have batch response
// enabled; SNSFunction returns ErrBatchResponseUnsupported otherwise.
//
// Example:
//
//	d, err := lambdafn.New[UserSignedUp](reg, lambdafn.WithParallelism(4))
//	...
//	fn, err := lambdafn.SNSFunction(d)
//	...
//	lambda.Start(fn)
func SNSFunction[T any](d *Dispatcher[T]) (func(context.Context, events.SNSEvent) error, error) {
	if d.BatchResponse() {
		return nil, fmt.Errorf("sns: %w", ErrBatchResponseUnsupported)
	}
	return func(ctx context.Context, evt events.SNSEvent) error {
		_, err := d.Dispatch(ctx, SNSRecords(evt))
		return err
	}, nil
}
