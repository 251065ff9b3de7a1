package reputation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vendosync/internal/events"
	"vendosync/internal/reputation"
	"vendosync/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		reviews []reputation.RawReview
		want    float64
	}{
		{"no reviews", nil, 0},
		{"rating only", []reputation.RawReview{{Rating: 4}}, 80},
		{
			"joy",
			[]reputation.RawReview{{Rating: 5, Caption: "great", Sentiment: &reputation.Sentiment{Label: "joy", Score: 0.9}}},
			// 0.9*100*1.0*0.5 + 5/5*100*0.5
			95,
		},
		{
			"anger",
			[]reputation.RawReview{{Rating: 1, Caption: "awful", Sentiment: &reputation.Sentiment{Label: "anger", Score: 0.8}}},
			// 0.8*100*-0.9*0.5 + 1/5*100*0.5
			-26,
		},
		{
			"mean",
			[]reputation.RawReview{
				{Rating: 4},
				{Rating: 3, Caption: "ok", Sentiment: &reputation.Sentiment{Label: "neutral", Score: 0.99}},
			},
			// (80 + 30) / 2
			55,
		},
		{
			"unknown label weighs nothing",
			[]reputation.RawReview{{Rating: 5, Caption: "hm", Sentiment: &reputation.Sentiment{Label: "boredom", Score: 1}}},
			50,
		},
		{
			"caption without sentiment",
			[]reputation.RawReview{
				{Rating: 5},
				{Rating: 5, Caption: "no label"},
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, reputation.Score(tt.reviews), 0.001)
		})
	}
}

func newQueue(t *testing.T) *reputation.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return reputation.NewQueue(client)
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, reputation.Job{VendorID: "V1", Name: "Acme"}))
	require.NoError(t, q.Enqueue(ctx, reputation.Job{VendorID: "V2", Name: "Globex"}))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "V1", first.VendorID)
	require.False(t, first.EnqueuedAt.IsZero())

	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "V2", second.VendorID)
}

func TestQueueEmpty(t *testing.T) {
	q := newQueue(t)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.Nil(t, job)
}

type fakeSource struct {
	reviews []reputation.RawReview
	err     error
	query   string
}

func (s *fakeSource) Reviews(_ context.Context, query string, _ int) ([]reputation.RawReview, error) {
	s.query = query
	return s.reviews, s.err
}

type fakeStore struct {
	mu      sync.Mutex
	gred    map[string]float64
	reviews map[string][]models.Review
	done    chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		gred:    map[string]float64{"V1": -1},
		reviews: map[string][]models.Review{},
		done:    make(chan string, 1),
	}
}

func (s *fakeStore) ReplaceVendorReviews(_ context.Context, vendorID string, gred float64, reviews []models.Review) (*models.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.gred[vendorID]; !ok {
		return nil, models.ErrNotFound
	}
	s.gred[vendorID] = gred
	s.reviews[vendorID] = reviews
	select {
	case s.done <- vendorID:
	default:
	}
	return &models.Vendor{ID: vendorID, Gred: gred}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func TestWorkerHandle(t *testing.T) {
	source := &fakeSource{reviews: []reputation.RawReview{
		{Rating: 4, Date: "2024-02-01"},
		{Rating: 5, Caption: "great", Sentiment: &reputation.Sentiment{Label: "joy", Score: 1}},
	}}
	store := newFakeStore()
	pub := &fakePublisher{}
	w := reputation.NewWorker(nil, source, store, pub, reputation.WorkerConfig{}, zap.NewNop())

	err := w.Handle(context.Background(), reputation.Job{VendorID: "V1", Name: "Acme", Address: "Main St 1"})
	require.NoError(t, err)

	require.Equal(t, "Acme Main St 1", source.query)
	require.InDelta(t, 90, store.gred["V1"], 0.001)
	require.Len(t, store.reviews["V1"], 2)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), store.reviews["V1"][0].Date)

	require.Len(t, pub.events, 1)
	require.Equal(t, events.SystemActor, pub.events[0].ActorID)
	require.Equal(t, events.ResourceVendor, pub.events[0].ResourceType)
	require.Equal(t, events.Modify, pub.events[0].ChangeType)
}

func TestWorkerHandleSkips(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}

	w := reputation.NewWorker(nil, &fakeSource{}, store, pub, reputation.WorkerConfig{}, zap.NewNop())
	require.NoError(t, w.Handle(context.Background(), reputation.Job{VendorID: "V1"}))
	require.Equal(t, -1.0, store.gred["V1"])

	w = reputation.NewWorker(nil, &fakeSource{reviews: []reputation.RawReview{{Rating: 3}}}, store, pub, reputation.WorkerConfig{}, zap.NewNop())
	require.NoError(t, w.Handle(context.Background(), reputation.Job{VendorID: "gone"}))

	w = reputation.NewWorker(nil, &fakeSource{err: errors.New("boom")}, store, pub, reputation.WorkerConfig{}, zap.NewNop())
	require.Error(t, w.Handle(context.Background(), reputation.Job{VendorID: "V1"}))

	require.Empty(t, pub.events)
}

func TestWorkerRunConsumesQueue(t *testing.T) {
	q := newQueue(t)
	store := newFakeStore()
	source := &fakeSource{reviews: []reputation.RawReview{{Rating: 5}}}
	w := reputation.NewWorker(q, source, store, &fakePublisher{}, reputation.WorkerConfig{PollTimeout: time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- w.Run(ctx) }()

	require.NoError(t, q.Enqueue(context.Background(), reputation.Job{VendorID: "V1", Name: "Acme"}))

	select {
	case id := <-store.done:
		require.Equal(t, "V1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reviews", r.URL.Path)
		require.Equal(t, "Acme Main St", r.URL.Query().Get("q"))
		require.Equal(t, "2", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"reviews": []map[string]any{
				{"rating": 5, "caption": "nice", "sentiment": map[string]any{"label": "love", "score": 0.7}},
				{"rating": 2},
				{"rating": 1},
			},
		})
	}))
	defer srv.Close()

	src := reputation.NewHTTPSource(srv.URL+"/", time.Second)
	reviews, err := src.Reviews(context.Background(), "Acme Main St", 2)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	require.Equal(t, "love", reviews[0].Sentiment.Label)
	require.Nil(t, reviews[1].Sentiment)
}

func TestHTTPSourceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := reputation.NewHTTPSource(srv.URL, time.Second).Reviews(context.Background(), "x", 10)
	require.Error(t, err)
}
