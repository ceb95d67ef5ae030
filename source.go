package lambdafn

import (
	"github.com/aws/aws-lambda-go/events"
	jsoniter "github.com/json-iterator/go"
)

// Source decodes one invocation envelope format into a batch of records.
//
// Sources are matched by their Discriminator before Parse is called, so a
// Function can accept several envelope formats on the same entry point.
//
// Example:
//
//	type kinesisSource struct{}
//
//	func (kinesisSource) Name() string { return "kinesis" }
//
//	func (kinesisSource) Discriminator() lambdafn.Discriminator {
//	    return lambdafn.FieldEquals("Records.0.eventSource", "aws:kinesis")
//	}
//
//	func (kinesisSource) BatchResponse() bool { return false }
//
//	func (kinesisSource) Parse(raw []byte) ([]lambdafn.Record, error) {
//	    var evt events.KinesisEvent
//	    if err := json.Unmarshal(raw, &evt); err != nil {
//	        return nil, err
//	    }
//	    ...
//	}
type Source interface {
	// Name returns the source identifier for logging.
	Name() string

	// Discriminator returns a predicate for cheap envelope detection.
	Discriminator() Discriminator

	// Parse decodes raw into records.
	Parse(raw []byte) ([]Record, error)

	// BatchResponse reports whether the platform understands a partial
	// batch response for this source.
	BatchResponse() bool
}

// SourceFunc creates a Source from its parts.
func SourceFunc(name string, disc Discriminator, batchResponse bool, parse func([]byte) ([]Record, error)) Source {
	return &sourceFunc{name: name, disc: disc, batchResponse: batchResponse, parse: parse}
}

type sourceFunc struct {
	name          string
	disc          Discriminator
	batchResponse bool
	parse         func([]byte) ([]Record, error)
}

func (s *sourceFunc) Name() string                       { return s.name }
func (s *sourceFunc) Discriminator() Discriminator       { return s.disc }
func (s *sourceFunc) Parse(raw []byte) ([]Record, error) { return s.parse(raw) }
func (s *sourceFunc) BatchResponse() bool                { return s.batchResponse }

var envelopeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// SQSSource recognizes SQS event source mapping payloads.
func SQSSource() Source {
	return SourceFunc(
		"sqs",
		And(
			HasFields("Records.0.messageId", "Records.0.body"),
			FieldEquals("Records.0.eventSource", "aws:sqs"),
		),
		true,
		func(raw []byte) ([]Record, error) {
			var evt events.SQSEvent
			if err := envelopeJSON.Unmarshal(raw, &evt); err != nil {
				return nil, err
			}
			return SQSRecords(evt), nil
		},
	)
}

// SNSSource recognizes SNS subscription payloads.
func SNSSource() Source {
	return SourceFunc(
		"sns",
		And(
			HasFields("Records.0.Sns.MessageId"),
			FieldEquals("Records.0.EventSource", "aws:sns"),
		),
		false,
		func(raw []byte) ([]Record, error) {
			var evt events.SNSEvent
			if err := envelopeJSON.Unmarshal(raw, &evt); err != nil {
				return nil, err
			}
			return SNSRecords(evt), nil
		},
	)
}
