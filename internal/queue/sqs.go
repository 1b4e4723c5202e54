package queue

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// maxReceiveMessages is the largest batch SQS hands out per receive.
const maxReceiveMessages = 10

type SqsConfig struct {
	QueueURL        string
	Region          string
	WaitTimeSeconds int
	MaxInFlight     int

	Consumer bool
}

type SqsQueue struct {
	config  *SqsConfig
	sqs     sqsiface.SQSAPI
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSqsQueue(config *SqsConfig, handler Handler) (*SqsQueue, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(config.Region)},
		SharedConfigState: session.SharedConfigEnable,
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to create aws session")
	}

	return newSqsQueue(config, sqs.New(sess), handler)
}

func newSqsQueue(config *SqsConfig, client sqsiface.SQSAPI, handler Handler) (*SqsQueue, error) {
	ctx, cancel := context.WithCancel(context.Background())

	queue := &SqsQueue{
		config:  config,
		sqs:     client,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if !config.Consumer {
		close(queue.done)
		return queue, nil
	}

	if handler == nil {
		cancel()
		return nil, errors.New("a SQS consumer requires a message handler")
	}

	// if we are a consumer lets go and start polling for messages, this runs
	// until the queue is stopped.
	go queue.startPollingMessages()

	return queue, nil
}

func (s *SqsQueue) batchSize() int64 {
	switch {
	case s.config.MaxInFlight <= 0:
		return 1
	case s.config.MaxInFlight > maxReceiveMessages:
		return maxReceiveMessages
	default:
		return int64(s.config.MaxInFlight)
	}
}

func (s *SqsQueue) startPollingMessages() {
	defer close(s.done)

	for s.ctx.Err() == nil {
		output, err := s.sqs.ReceiveMessageWithContext(s.ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.config.QueueURL),
			MaxNumberOfMessages: aws.Int64(s.batchSize()),
			WaitTimeSeconds:     aws.Int64(int64(s.config.WaitTimeSeconds)),
		})

		if err != nil {
			if s.ctx.Err() != nil {
				return
			}

			log.Error().Err(err).Msg("failed to gather SQS messages")

			select {
			case <-time.After(time.Second):
			case <-s.ctx.Done():
			}

			continue
		}

		wg := sync.WaitGroup{}

		// only this batch of messages is in flight, the next receive waits
		// until every message of the batch has been judged.
		for _, message := range output.Messages {
			if aws.StringValue(message.Body) == "" {
				continue
			}

			wg.Add(1)

			go func(m *sqs.Message) {
				defer wg.Done()
				s.handleMessage(m)
			}(message)
		}

		wg.Wait()
	}
}

func (s *SqsQueue) handleMessage(m *sqs.Message) {
	id := aws.StringValue(m.MessageId)

	// messages that are not finished with become visible again once their
	// visibility timeout expires.
	if !dispatch(s.ctx, "sqs", s.handler, id, []byte(aws.StringValue(m.Body))) {
		return
	}

	if _, err := s.sqs.DeleteMessage(&sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.config.QueueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to delete handled SQS message")
	}
}

func (s *SqsQueue) SubmitMessageToQueue(data []byte) error {
	_, err := s.sqs.SendMessage(&sqs.SendMessageInput{
		MessageBody: aws.String(string(data)),
		QueueUrl:    aws.String(s.config.QueueURL),
	})

	return errors.Wrap(err, "failed to send SQS message")
}

func (s *SqsQueue) Stop() {
	log.Info().Msg("stopping SQS queue")

	s.cancel()
	<-s.done
}
