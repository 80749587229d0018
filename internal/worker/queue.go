package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"courseta-backend/internal/models"
)

const ingestQueue = "queue:document-ingest"

// Queue pushes ingest jobs onto the Redis list that the worker pool drains.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.redis.LPush(ctx, ingestQueue, string(jobBytes)).Err()
}

// Publisher fans job progress out over Redis pub/sub so the WebSocket hub can
// forward it to the page that started the ingest.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisClient *redis.Client) *Publisher {
	return &Publisher{redis: redisClient}
}

func clientChannel(clientID uuid.UUID) string {
	return "client_updates:" + clientID.String()
}

func (p *Publisher) PublishUpdate(ctx context.Context, clientID uuid.UUID, msg models.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.redis.Publish(ctx, clientChannel(clientID), string(payload))
}
