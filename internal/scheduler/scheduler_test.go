package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/linepush/internal/infrastructure/config"
)

type publisher struct {
	mu      sync.Mutex
	single  []string
	batches [][]string
	fail    map[string]error
}

func (p *publisher) Publish(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.single = append(p.single, id)
	return p.fail[id]
}

func (p *publisher) PublishBatch(_ context.Context, ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, ids)
	return p.fail["batch"]
}

func TestAdd_InvalidSchedule(t *testing.T) {
	s := New()

	err := s.Add("bad", "every now and then", func(context.Context) error { return nil })
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("Add() error = %v, want ErrInvalidSchedule", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestAdd_Duplicate(t *testing.T) {
	s := New()
	noop := func(context.Context) error { return nil }

	if err := s.Add("job", "@every 1m", noop); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add("job", "*/5 * * * *", noop); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("second Add() error = %v, want ErrDuplicateJob", err)
	}
}

func TestAddPublishJob(t *testing.T) {
	tests := []struct {
		name        string
		job         config.PublishJobConfig
		fail        map[string]error
		wantSingle  []string
		wantBatches int
		wantErr     bool
	}{
		{
			name:       "single measurements in order",
			job:        config.PublishJobConfig{Name: "j", Schedule: "@every 1m", Measurements: []string{"climate", "boiler"}},
			wantSingle: []string{"climate", "boiler"},
		},
		{
			name:        "batch",
			job:         config.PublishJobConfig{Name: "j", Schedule: "@every 1m", Measurements: []string{"climate", "boiler"}, Batch: true},
			wantBatches: 1,
		},
		{
			name:       "failure does not stop the rest",
			job:        config.PublishJobConfig{Name: "j", Schedule: "@every 1m", Measurements: []string{"climate", "boiler"}},
			fail:       map[string]error{"climate": errors.New("write failed")},
			wantSingle: []string{"climate", "boiler"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			p := &publisher{fail: tt.fail}

			if err := s.AddPublishJob(tt.job, p); err != nil {
				t.Fatalf("AddPublishJob() error = %v", err)
			}

			err := s.RunNow(context.Background(), "j")
			if (err != nil) != tt.wantErr {
				t.Errorf("RunNow() error = %v, wantErr %v", err, tt.wantErr)
			}

			if len(p.single) != len(tt.wantSingle) {
				t.Fatalf("single publishes = %v, want %v", p.single, tt.wantSingle)
			}
			for i := range p.single {
				if p.single[i] != tt.wantSingle[i] {
					t.Errorf("single publishes = %v, want %v", p.single, tt.wantSingle)
				}
			}
			if len(p.batches) != tt.wantBatches {
				t.Errorf("batches = %d, want %d", len(p.batches), tt.wantBatches)
			}
		})
	}
}

func TestAddPublishJob_CopiesMeasurements(t *testing.T) {
	s := New()
	p := &publisher{}
	job := config.PublishJobConfig{Name: "j", Schedule: "@every 1m", Measurements: []string{"climate"}, Batch: true}

	if err := s.AddPublishJob(job, p); err != nil {
		t.Fatalf("AddPublishJob() error = %v", err)
	}
	job.Measurements[0] = "changed"

	if err := s.RunNow(context.Background(), "j"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if p.batches[0][0] != "climate" {
		t.Errorf("batch = %v, want [climate]", p.batches[0])
	}
}

func TestRunNow_Unknown(t *testing.T) {
	s := New()
	if err := s.RunNow(context.Background(), "nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("RunNow() error = %v, want ErrJobNotFound", err)
	}
}

func TestRun_RecordsOutcome(t *testing.T) {
	s := New()
	calls := 0
	if err := s.Add("flaky", "@every 1h", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("influx down")
		}
		return nil
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	j := s.jobs["flaky"]
	s.run(j)

	st := s.Jobs()[0]
	if st.Runs != 1 || st.Failures != 1 || st.LastError != "influx down" {
		t.Errorf("after failure = %+v", st)
	}

	s.run(j)

	st = s.Jobs()[0]
	if st.Runs != 2 || st.Failures != 1 || st.LastError != "" {
		t.Errorf("after success = %+v", st)
	}
	if st.LastRun.IsZero() {
		t.Error("LastRun should be set")
	}
}

func TestJobs_SortedWithNextRun(t *testing.T) {
	s := New()
	noop := func(context.Context) error { return nil }
	for _, name := range []string{"zeta", "alpha"} {
		if err := s.Add(name, "@every 1h", noop); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	s.Start()
	defer s.Stop(context.Background()) //nolint:errcheck // Test cleanup

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].Name != "alpha" || jobs[1].Name != "zeta" {
		t.Fatalf("Jobs() = %+v, want alpha then zeta", jobs)
	}
	if jobs[0].NextRun.IsZero() || jobs[0].Schedule != "@every 1h" {
		t.Errorf("alpha = %+v, want next run and schedule", jobs[0])
	}
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	s := New()
	var runs atomic.Int32
	ran := make(chan struct{}, 1)

	if err := s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run within 3s")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	if runs.Load() != after {
		t.Error("job ran after Stop")
	}
}

func TestStop_CancelsRunningJobs(t *testing.T) {
	s := New()
	started := make(chan struct{})
	var sawCancel atomic.Bool

	if err := s.Add("slow", "@every 1s", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start within 3s")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !sawCancel.Load() {
		t.Error("running job should see its context cancelled before Stop returns")
	}
}
