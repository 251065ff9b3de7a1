package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vendosync/internal/events"
	"vendosync/internal/metrics"
	"vendosync/models"
)

// Store сохраняет результат оценки
type Store interface {
	// ReplaceVendorReviews заменяет отзывы и оценку поставщика в одной транзакции
	ReplaceVendorReviews(ctx context.Context, vendorID string, gred float64, reviews []models.Review) (*models.Vendor, error)
}

// JobSource источник задач
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
}

// WorkerConfig параметры обработчика
type WorkerConfig struct {
	ReviewLimit int
	JobTimeout  time.Duration
	PollTimeout time.Duration
}

// Worker обрабатывает задачи по одной. Повторов нет: упавшая задача только логируется.
type Worker struct {
	jobs      JobSource
	source    ReviewSource
	store     Store
	publisher events.Publisher
	log       *zap.Logger
	metrics   *metrics.Metrics
	cfg       WorkerConfig
}

func NewWorker(jobs JobSource, source ReviewSource, store Store, publisher events.Publisher, cfg WorkerConfig, log *zap.Logger) *Worker {
	if cfg.ReviewLimit <= 0 {
		cfg.ReviewLimit = 50
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.PollTimeout < time.Second {
		cfg.PollTimeout = time.Second
	}
	return &Worker{
		jobs:      jobs,
		source:    source,
		store:     store,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
	}
}

func (w *Worker) WithMetrics(m *metrics.Metrics) *Worker {
	w.metrics = m
	return w
}

// Run читает очередь до отмены ctx
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Reputation worker started")
	defer w.log.Info("Reputation worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := w.jobs.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("Failed to dequeue reputation job", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		if err := w.Handle(ctx, *job); err != nil {
			w.log.Error("Reputation job failed", zap.String("vendor_id", job.VendorID), zap.Error(err))
		}
	}
}

// Handle выполняет одну задачу с ограничением по времени
func (w *Worker) Handle(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	log := w.log.With(zap.String("vendor_id", job.VendorID))
	log.Debug("Begin vendor assessment", zap.String("name", job.Name))

	raw, err := w.source.Reviews(ctx, job.Query(), w.cfg.ReviewLimit)
	if err != nil {
		w.count("failed")
		return fmt.Errorf("fetch reviews: %w", err)
	}
	if len(raw) == 0 {
		log.Debug("No reviews found, assessment skipped")
		w.count("skipped")
		return nil
	}

	gred := Score(raw)
	reviews := make([]models.Review, 0, len(raw))
	for _, r := range raw {
		reviews = append(reviews, models.Review{
			ID:       uuid.NewString(),
			VendorID: job.VendorID,
			Rating:   r.Rating,
			Caption:  r.Caption,
			Date:     parseReviewDate(r.Date, job.EnqueuedAt),
		})
	}

	vendor, err := w.store.ReplaceVendorReviews(ctx, job.VendorID, gred, reviews)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// поставщика удалили, пока задача была в очереди
			log.Info("Vendor gone, assessment dropped")
			w.count("skipped")
			return nil
		}
		w.count("failed")
		return fmt.Errorf("save assessment: %w", err)
	}

	log.Info("Finished vendor assessment", zap.Float64("gred", gred), zap.Int("reviews", len(reviews)))
	w.count("ok")

	err = w.publisher.Publish(ctx, events.Event{
		ActorID:      events.SystemActor,
		ChangeType:   events.Modify,
		ResourceType: events.ResourceVendor,
		Payload:      vendor,
	})
	if err != nil {
		log.Warn("Failed to publish vendor change", zap.Error(err))
	}
	return nil
}

func (w *Worker) count(result string) {
	if w.metrics != nil {
		w.metrics.ReputationJobs.WithLabelValues(result).Inc()
	}
}

func parseReviewDate(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if fallback.IsZero() {
		return time.Now().UTC()
	}
	return fallback
}
