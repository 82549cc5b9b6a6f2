package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mfarias/fudo-analytics/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var handled atomic.Int32
	handler := func(ctx context.Context, job *jobs.RefreshSalesJob) error {
		handled.Add(1)
		job.SalesLoaded = 42
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.RefreshSalesJob{
		StartDate: civil.Date{Year: 2024, Month: 3, Day: 1},
		EndDate:   civil.Date{Year: 2024, Month: 3, Day: 7},
	}
	if err := q.PublishRefresh(ctx, job); err != nil {
		t.Fatalf("PublishRefresh: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("publish did not assign a job ID")
	}

	waitFor(t, 2*time.Second, func() bool {
		stored, err := store.GetJob(ctx, job.JobID)
		return err == nil && stored.Status == jobs.JobStatusCompleted
	})

	stored, err := store.GetJob(ctx, job.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.SalesLoaded != 42 {
		t.Errorf("SalesLoaded = %d, want 42", stored.SalesLoaded)
	}
	if handled.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", handled.Load())
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var attempts atomic.Int32
	handler := func(ctx context.Context, job *jobs.RefreshSalesJob) error {
		if attempts.Add(1) < 2 {
			return errors.New("upstream hiccup")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.RefreshSalesJob{MaxRetries: 2}
	if err := q.PublishRefresh(ctx, job); err != nil {
		t.Fatalf("PublishRefresh: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		stored, err := store.GetJob(ctx, job.JobID)
		return err == nil && stored.Status == jobs.JobStatusCompleted
	})
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, nil)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	err := q.PublishRefresh(context.Background(), &jobs.RefreshSalesJob{})
	if err == nil {
		t.Error("expected error publishing to a closed queue")
	}
}

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Now()
	for i, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		job := &jobs.RefreshSalesJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("got %d completed jobs, want 2", len(completed))
	}
	if !completed[0].CreatedAt.After(completed[1].CreatedAt) {
		t.Error("jobs not sorted newest first")
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d jobs with limit 1", len(limited))
	}
}
