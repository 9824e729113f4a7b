package ragstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"ragcore/internal/ragconfig"
)

// JobKind names a unit of work the scheduler's workers execute (§4.7).
type JobKind string

const (
	JobIngest   JobKind = "ingest"
	JobDedup    JobKind = "dedup"
	JobBackfill JobKind = "backfill"
)

// Job is one message on the job queue.
type Job struct {
	ID       string          `json:"id"`
	TenantID string          `json:"tenant_id"`
	Kind     JobKind         `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
}

// JobQueue enqueues and consumes Job messages. Writer/reader shape
// follows kafka.Writer/kafka-go's segmentio reader, generalizing
// tools/kafka's Writer interface and NewProducerFromBrokers constructor.
type JobQueue struct {
	writer *kafka.Writer
	topic  string
}

// NewJobQueue builds a JobQueue producer over the configured brokers.
func NewJobQueue(cfg ragconfig.KafkaConfig) (*JobQueue, error) {
	brokers := strings.TrimSpace(cfg.Brokers)
	if brokers == "" {
		return nil, fmt.Errorf("ragstore: kafka brokers cannot be empty")
	}
	brokerList := strings.Split(brokers, ",")
	for i, b := range brokerList {
		brokerList[i] = strings.TrimSpace(b)
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokerList...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &JobQueue{writer: writer, topic: cfg.Topic}, nil
}

// Enqueue publishes a job, assigning it a fresh ID when empty.
func (q *JobQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("ragstore: marshal job: %w", err)
	}
	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.TenantID),
		Value: data,
	})
}

func (q *JobQueue) Close() error { return q.writer.Close() }

// JobReader consumes Job messages from the queue.
type JobReader struct {
	reader *kafka.Reader
}

// NewJobReader builds a JobReader in the given consumer group.
func NewJobReader(cfg ragconfig.KafkaConfig, groupID string) (*JobReader, error) {
	brokers := strings.TrimSpace(cfg.Brokers)
	if brokers == "" {
		return nil, fmt.Errorf("ragstore: kafka brokers cannot be empty")
	}
	brokerList := strings.Split(brokers, ",")
	for i, b := range brokerList {
		brokerList[i] = strings.TrimSpace(b)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokerList,
		Topic:   cfg.Topic,
		GroupID: groupID,
	})
	return &JobReader{reader: reader}, nil
}

// ReadJob blocks until the next job is available or ctx is cancelled.
func (r *JobReader) ReadJob(ctx context.Context) (Job, error) {
	msg, err := r.reader.ReadMessage(ctx)
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return Job{}, fmt.Errorf("ragstore: unmarshal job: %w", err)
	}
	return job, nil
}

func (r *JobReader) Close() error { return r.reader.Close() }
