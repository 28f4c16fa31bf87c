package broker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/IliaW/program-scraper/config"
	"github.com/IliaW/program-scraper/internal/model"
	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress/lz4"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducerClient publishes program records to a topic, one message per record keyed by detail URL.
type KafkaProducerClient struct {
	recordChan <-chan *model.ProgramRecord
	runID      string
	cfg        *config.ProducerConfig
	log        *slog.Logger
	wg         *sync.WaitGroup
	writer     messageWriter
}

func NewKafkaProducer(recordChan <-chan *model.ProgramRecord, runID string, cfg *config.ProducerConfig,
	log *slog.Logger, wg *sync.WaitGroup) *KafkaProducerClient {
	return &KafkaProducerClient{
		recordChan: recordChan,
		runID:      runID,
		cfg:        cfg,
		log:        log,
		wg:         wg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.Addr, ",")...),
			Topic:        cfg.WriteTopicName,
			Balancer:     &kafka.Hash{},
			MaxAttempts:  cfg.MaxAttempts,
			BatchSize:    1,                // the parameter is controlled by 'batchTicker' variable
			BatchTimeout: time.Millisecond, // the parameter is controlled by 'batch' variable
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Async:        cfg.Async,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
				}
			},
			Compression: kafka.Compression(new(lz4.Codec).Code()),
		},
	}
}

// Run sends records until recordChan is closed. Records still buffered at that point are flushed before
// it returns.
func (p *KafkaProducerClient) Run() {
	defer p.wg.Done()
	p.log.Info("starting kafka producer...", slog.String("topic", p.cfg.WriteTopicName))
	defer func() {
		err := p.writer.Close()
		if err != nil {
			p.log.Error("failed to close kafka writer.", slog.String("err", err.Error()))
		}
	}()

	batchSize := max(p.cfg.BatchSize, 1)
	batchTicker := time.NewTicker(max(p.cfg.BatchTimeout, time.Millisecond))
	defer batchTicker.Stop()
	batch := make([]kafka.Message, 0, batchSize)
	writeMessage := func(batch []kafka.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()
		err := p.writer.WriteMessages(ctx, batch...)
		if err != nil {
			p.log.Error("failed to send messages to kafka.", slog.String("err", err.Error()))
			return
		}
		p.log.Debug("successfully sent messages to kafka.", slog.Int("batch length", len(batch)))
	}

	for record := range p.recordChan {
		body, err := jsoniter.Marshal(record)
		if err != nil {
			p.log.Error("marshaling error.", slog.String("err", err.Error()), slog.String("url", record.DetailURL))
			continue
		}
		batch = append(batch, kafka.Message{
			Key:     []byte(record.DetailURL),
			Value:   body,
			Headers: []kafka.Header{{Key: "run_id", Value: []byte(p.runID)}},
		})
		select {
		case <-batchTicker.C:
			writeMessage(batch)
			batch = make([]kafka.Message, 0, batchSize)
		default:
			if len(batch) >= batchSize {
				writeMessage(batch)
				batch = make([]kafka.Message, 0, batchSize)
			}
		}
	}
	// Some messages may remain in the batch after recordChan is closed
	if len(batch) > 0 {
		p.log.Debug("messages in batch.", slog.Int("count", len(batch)))
		writeMessage(batch)
	}
	p.log.Info("stopping kafka writer.")
}

// Publish streams every record of batch through a producer and waits until it is done.
func Publish(batch *model.ScrapeBatch, cfg *config.ProducerConfig, log *slog.Logger) {
	recordChan := make(chan *model.ProgramRecord, 100)
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go NewKafkaProducer(recordChan, batch.RunID, cfg, log, wg).Run()

	for i := range batch.Records {
		recordChan <- &batch.Records[i]
	}
	close(recordChan)
	log.Info("close recordChan.")
	wg.Wait()
}
