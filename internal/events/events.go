// Package events рассылает уведомления об изменении данных подписчикам
// по типу ресурса через Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// ChangeType вид изменения
type ChangeType string

const (
	Add    ChangeType = "add"
	Modify ChangeType = "modify"
	Delete ChangeType = "delete"
)

// Типы ресурсов, на которые можно подписаться
const (
	ResourceVendor      = "vendor"
	ResourceItem        = "item"
	ResourceProcurement = "procurement"
	ResourceRFQ         = "rfq"
	ResourceUsers       = "users"
)

// SystemActor автор изменений, сделанных фоновыми задачами
const SystemActor = "system"

// Event уведомление об изменении
type Event struct {
	ActorID      string     `json:"actor_id"`
	ChangeType   ChangeType `json:"change_type"`
	ResourceType string     `json:"resource_type"`
	Payload      any        `json:"payload"`
}

// Publisher публикует события
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

const defaultPrefix = "changes"

// Channel имя канала Redis для типа ресурса
func Channel(resource string) string {
	return defaultPrefix + ":" + resource
}

// RedisPublisher публикует события в канал changes:<resource_type>
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(evt.ResourceType), data).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.ResourceType, err)
	}
	return nil
}
