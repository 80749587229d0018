package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"courseta-backend/internal/models"
	"courseta-backend/internal/repository"
	"courseta-backend/internal/services"
)

// Pool runs document ingestion jobs pulled from the Redis queue. Multiple
// instances of the backend can share the queue; a per-job lock keeps two
// workers from ingesting the same document at once.
type Pool struct {
	redis       *redis.Client
	publisher   *Publisher
	ingestor    *services.Ingestor
	jobRepo     *repository.JobRepo
	docRepo     *repository.DocumentRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	publisher *Publisher,
	ingestor *services.Ingestor,
	jobRepo *repository.JobRepo,
	docRepo *repository.DocumentRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		publisher:   publisher,
		ingestor:    ingestor,
		jobRepo:     jobRepo,
		docRepo:     docRepo,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, ingestQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (document: %s)", id, job.ID, job.DocumentID)

		p.jobRepo.UpdateStatus(ctx, job.ID, "processing")
		p.docRepo.UpdateStatus(ctx, job.DocumentID, "processing")

		if processErr := p.processIngest(ctx, &job); processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			log.Printf("Job %s completed successfully", job.ID)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processIngest(ctx context.Context, job *models.Job) error {
	doc, err := p.docRepo.GetByID(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	chunkCount, err := p.ingestor.Ingest(ctx, doc, func(step int, name string) {
		p.publisher.PublishUpdate(ctx, job.ClientID, models.WSMessage{
			Type: "status_update",
			Payload: models.StatusUpdate{
				JobID:    job.ID,
				Step:     step,
				StepName: name,
			},
		})
	})
	if err != nil {
		return err
	}

	p.docRepo.UpdateStatus(ctx, doc.ID, "indexed")
	p.jobRepo.UpdateStatus(ctx, job.ID, "completed")

	p.publisher.PublishUpdate(ctx, job.ClientID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			DocumentID: doc.ID,
			ChunkCount: chunkCount,
		},
	})

	return nil
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < job.MaxRetries {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobRepo.UpdateStatus(ctx, job.ID, "pending")
		p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		time.AfterFunc(backoff, func() {
			p.redis.LPush(context.Background(), ingestQueue, string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobRepo.UpdateStatus(ctx, job.ID, "failed")
	p.jobRepo.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	p.docRepo.UpdateStatus(ctx, job.DocumentID, "failed")

	p.publisher.PublishUpdate(ctx, job.ClientID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorMessage: errMsg,
		},
	})
}
