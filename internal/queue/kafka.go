// Package queue serves fill requests from a Kafka topic and publishes the
// filled documents to a response topic.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/Shopify/sarama"
)

var errTopicIsExist = errors.New("topic is already consumed")

// Handler message from mq.
type Handler func(ctx context.Context, message []byte)

// Publish message to mq.
type Publish func(message []byte) error

type handler struct {
	partitionConsumer sarama.PartitionConsumer
	handler           Handler
}

// MessageQueue of kafka.
type MessageQueue struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	client   sarama.Client
	producer sarama.SyncProducer
	consumer sarama.Consumer
	handler  map[string]handler
}

// NewMessageQueue connects to the brokers at addrs.
func NewMessageQueue(
	addrs []string,
) (*MessageQueue, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	client, err := sarama.NewClient(addrs, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, err
	}

	mq := newMessageQueue(producer, consumer)
	mq.client = client
	return mq, nil
}

func newMessageQueue(producer sarama.SyncProducer, consumer sarama.Consumer) *MessageQueue {
	mq := &MessageQueue{
		producer: producer,
		consumer: consumer,
		handler:  make(map[string]handler),
	}
	mq.ctx, mq.cancel = context.WithCancel(context.Background())
	return mq
}

// Consume adds consume topic. Only messages produced after the call are seen.
func (mq *MessageQueue) Consume(topic string, h Handler) error {
	if _, isExist := mq.handler[topic]; isExist {
		return errTopicIsExist
	}

	cp, err := mq.consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return err
	}
	mq.handler[topic] = handler{
		partitionConsumer: cp,
		handler:           h,
	}
	return nil
}

// NewPublish returns publish func.
func (mq *MessageQueue) NewPublish(topic string) Publish {
	return func(message []byte) (err error) {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(message),
		}
		_, _, err = mq.producer.SendMessage(msg)
		return
	}
}

// ListenAndServe message queue.
func (mq *MessageQueue) ListenAndServe() {
	for _, topic := range mq.handler {
		mq.wg.Add(1)
		go mq.runtime(topic)
	}
}

// Shutdown stops the consumers and waits for in-flight messages before
// closing the connections.
func (mq *MessageQueue) Shutdown() {
	mq.cancel()
	mq.wg.Wait()
	mq.consumer.Close()
	mq.producer.Close()
	if mq.client != nil {
		mq.client.Close()
	}
}

func (mq *MessageQueue) runtime(topic handler) {
	defer mq.wg.Done()
	defer topic.partitionConsumer.Close()
	for {
		select {
		case <-mq.ctx.Done():
			return
		case m, ok := <-topic.partitionConsumer.Messages():
			if !ok {
				return
			}
			mq.wg.Add(1)
			go func(value []byte) {
				defer mq.wg.Done()
				topic.handler(mq.ctx, value)
			}(m.Value)
		}
	}
}
