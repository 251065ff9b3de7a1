package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultQueueKey = "reputation:jobs"

// Job задача на пересчет оценки поставщика
type Job struct {
	VendorID   string    `json:"vendor_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Query строка поиска отзывов
func (j Job) Query() string {
	return j.Name + " " + j.Address
}

// Enqueuer ставит задачи в очередь
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Queue очередь задач на списке Redis: LPUSH на запись, BRPOP на чтение
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client, key: defaultQueueKey}
}

func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue reputation job: %w", err)
	}
	return nil
}

// Dequeue ждет задачу не дольше timeout. Возвращает nil, nil если очередь пуста.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dequeue reputation job: %w", err)
	}
	// BRPOP возвращает [key, value]
	if len(res) < 2 {
		return nil, fmt.Errorf("unexpected BRPOP result: %v", res)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode reputation job: %w", err)
	}
	return &job, nil
}

// Len размер очереди
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
