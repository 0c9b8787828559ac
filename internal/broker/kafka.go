package broker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string
	Topic   string
}

type KafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer builds an async writer; onError receives delivery failures.
func NewProducer(cfg *Config, onError func(error)) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	if onError != nil {
		w.Completion = func(_ []kafka.Message, err error) {
			if err != nil {
				onError(err)
			}
		}
	}
	return &KafkaProducer{writer: w}
}

func (p *KafkaProducer) WriteMessage(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// partitionReader is the part of kafka.Reader a consumer drives.
type partitionReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer tails every partition of a topic from its newest offset
// without joining a consumer group, so each instance receives every message
// and leaves no group state on the brokers when it goes away. Partitions
// added after start are not followed.
type KafkaConsumer struct {
	readers []partitionReader
	msgs    chan kafka.Message
	errs    chan error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewConsumer looks up the topic's partitions on the first reachable broker
// and starts one reader per partition.
func NewConsumer(ctx context.Context, cfg *Config) (*KafkaConsumer, error) {
	partitions, err := lookupPartitions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	readers := make([]partitionReader, 0, len(partitions))
	for _, p := range partitions {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:   cfg.Brokers,
			Topic:     cfg.Topic,
			Partition: p.ID,
			MinBytes:  1,
			MaxBytes:  1 << 20,
		})
		if err := r.SetOffset(kafka.LastOffset); err != nil {
			for _, open := range readers {
				open.Close()
			}
			r.Close()
			return nil, errors.Wrapf(err, "seek partition %d", p.ID)
		}
		readers = append(readers, r)
	}
	return newConsumer(readers), nil
}

func lookupPartitions(ctx context.Context, cfg *Config) ([]kafka.Partition, error) {
	var lastErr error = errors.New("no kafka brokers configured")
	for _, addr := range cfg.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions(cfg.Topic)
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if len(partitions) == 0 {
			return nil, errors.Errorf("topic %q has no partitions", cfg.Topic)
		}
		return partitions, nil
	}
	return nil, errors.Wrapf(lastErr, "read partitions of %q", cfg.Topic)
}

func newConsumer(readers []partitionReader) *KafkaConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	c := &KafkaConsumer{
		readers: readers,
		msgs:    make(chan kafka.Message),
		errs:    make(chan error),
		cancel:  cancel,
	}
	for _, r := range readers {
		c.wg.Add(1)
		go c.pump(ctx, r)
	}
	return c
}

// pump forwards one partition. Read errors are handed to the caller, whose
// next ReadMessage paces the retry.
func (c *KafkaConsumer) pump(ctx context.Context, r partitionReader) {
	defer c.wg.Done()
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case c.errs <- err:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case c.msgs <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (c *KafkaConsumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case err := <-c.errs:
		return kafka.Message{}, err
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

// Close stops every partition reader; it is safe to call more than once.
func (c *KafkaConsumer) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
		for _, r := range c.readers {
			if cerr := r.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
