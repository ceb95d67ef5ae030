// Command sqs-batch-response is a sample SQS function with partial batch
// responses. Messages whose text contains "bad message" fail and are
// redelivered by SQS; the others are acknowledged.
package main

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bjaus/lambdafn"
	"github.com/bjaus/lambdafn/config"
)

// TestMessage is the body of each SQS message.
type TestMessage struct {
	Message string `json:"message"`
}

type testMessageHandler struct{}

func (testMessageHandler) Handle(ctx context.Context, m TestMessage) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("message", m.Message).Msg("received message")

	if info, ok := lambdafn.SQSInfoFromContext(ctx); ok {
		logger.Info().
			Str("message_id", info.MessageID).
			Int64("receive_count", info.ApproximateReceiveCount).
			Msg("details from SQS")
	}

	if strings.Contains(strings.ToLower(m.Message), "bad message") {
		return errors.New("message supplied was a bad message")
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	metrics, err := lambdafn.NewMetrics(prometheus.DefaultRegisterer, "sample")
	if err != nil {
		log.Fatal().Err(err).Msg("register metrics")
	}

	reg := lambdafn.NewRegistry()
	lambdafn.RegisterHandler(reg, func(context.Context, *lambdafn.Scope) (lambdafn.Handler[TestMessage], error) {
		return testMessageHandler{}, nil
	}, lambdafn.Transient)

	opts := append(cfg.Options(),
		lambdafn.WithBatchResponse(true),
		lambdafn.WithMetrics(metrics),
	)
	d, err := lambdafn.New[TestMessage](reg, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("configure dispatcher")
	}

	lambda.Start(lambdafn.SQSFunction(d))
}
