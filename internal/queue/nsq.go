package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// touchInterval keeps long running judgments from hitting the NSQ message
// timeout, which defaults to one minute.
const touchInterval = time.Second * 30

type NsqConfig struct {
	Topic            string
	Channel          string
	NsqLookupAddress string
	NsqLookupPort    int
	MaxInFlight      int

	Consumer bool
	Producer bool
}

func (c *NsqConfig) address() string {
	return fmt.Sprintf("%s:%d", c.NsqLookupAddress, c.NsqLookupPort)
}

type NsqQueue struct {
	config   *NsqConfig
	producer *nsq.Producer
	consumer *nsq.Consumer
	cancel   context.CancelFunc
}

type nsqConsumerMessageHandler struct {
	ctx      context.Context
	handler  Handler
	interval time.Duration
}

func NewNsqQueue(config *NsqConfig, handler Handler) (*NsqQueue, error) {
	queue := &NsqQueue{config: config, cancel: func() {}}

	if config.Producer {
		producer, err := nsq.NewProducer(config.address(), nsq.NewConfig())

		if err != nil {
			return nil, errors.Wrap(err, "failed to create NSQ producer")
		}

		queue.producer = producer
	}

	if config.Consumer {
		if handler == nil {
			return nil, errors.New("a NSQ consumer requires a message handler")
		}

		if config.MaxInFlight <= 0 {
			config.MaxInFlight = 1
		}

		nsqConfig := nsq.NewConfig()
		nsqConfig.MaxInFlight = config.MaxInFlight

		consumer, err := nsq.NewConsumer(config.Topic, config.Channel, nsqConfig)

		if err != nil {
			return nil, errors.Wrap(err, "failed to create NSQ consumer")
		}

		ctx, cancel := context.WithCancel(context.Background())
		queue.cancel = cancel

		consumer.AddConcurrentHandlers(&nsqConsumerMessageHandler{
			ctx:      ctx,
			handler:  handler,
			interval: touchInterval,
		}, config.MaxInFlight)

		if err := consumer.ConnectToNSQD(config.address()); err != nil {
			cancel()
			return nil, errors.Wrap(err, "failed to connect to NSQ")
		}

		queue.consumer = consumer
	}

	return queue, nil
}

func (h *nsqConsumerMessageHandler) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Touch()
			case <-done:
				return
			}
		}
	}()

	id := string(m.ID[:])

	if !dispatch(h.ctx, "nsq", h.handler, id, m.Body) {
		return errors.Errorf("submission message %s was not handled", id)
	}

	return nil
}

func (n *NsqQueue) SubmitMessageToQueue(data []byte) error {
	if n.producer == nil {
		return errors.New("the NSQ queue is not a producer")
	}

	return errors.Wrap(n.producer.Publish(n.config.Topic, data), "failed to publish to NSQ")
}

func (n *NsqQueue) Stop() {
	log.Info().Msg("stopping NSQ queue")

	// submissions still waiting for a judgment slot are requeued.
	n.cancel()

	if n.consumer != nil {
		n.consumer.Stop()
		<-n.consumer.StopChan
	}

	if n.producer != nil {
		n.producer.Stop()
	}
}
