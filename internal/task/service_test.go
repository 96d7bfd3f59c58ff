package task

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(filepath.Join(t.TempDir(), "jobs.json"))
}

func int64p(v int64) *int64    { return &v }
func stringp(v string) *string { return &v }

func TestAdd_EverySchedule(t *testing.T) {
	s := newTestService(t)

	job, err := s.Add("poll", Payload{Task: "check mail"}, Schedule{Kind: KindEvery, EveryMs: int64p(60_000)}, false)
	if err != nil {
		t.Fatal(err)
	}
	if job.ID == "" {
		t.Error("job has no ID")
	}
	if !job.Enabled {
		t.Error("new job should be enabled")
	}
	if job.State.NextRunAtMs == nil {
		t.Fatal("every-job should have a next run time")
	}
	if got := *job.State.NextRunAtMs - job.CreatedAtMs; got != 60_000 {
		t.Errorf("next run offset = %d, want 60000", got)
	}
}

func TestAdd_RejectsBadSchedules(t *testing.T) {
	s := newTestService(t)

	cases := []Schedule{
		{Kind: KindEvery},
		{Kind: KindEvery, EveryMs: int64p(-5)},
		{Kind: KindCron},
		{Kind: KindCron, Expr: stringp("not a cron expr")},
		{Kind: KindAt},
		{Kind: "sometimes"},
	}
	for _, sched := range cases {
		if _, err := s.Add("bad", Payload{Task: "x"}, sched, false); err == nil {
			t.Errorf("schedule %+v accepted, want error", sched)
		}
	}
}

func TestAdd_CronSchedule(t *testing.T) {
	s := newTestService(t)

	job, err := s.Add("daily", Payload{Task: "summarize"}, Schedule{Kind: KindCron, Expr: stringp("0 9 * * *")}, false)
	if err != nil {
		t.Fatal(err)
	}
	if job.State.NextRunAtMs == nil {
		t.Fatal("cron job should have a next run time")
	}
	if *job.State.NextRunAtMs <= nowMs() {
		t.Error("next run should be in the future")
	}
}

func TestList_SortsByNextRun(t *testing.T) {
	s := newTestService(t)

	far := nowMs() + 3_600_000
	near := nowMs() + 60_000
	if _, err := s.Add("far", Payload{Task: "a"}, Schedule{Kind: KindAt, AtMs: &far}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("near", Payload{Task: "b"}, Schedule{Kind: KindAt, AtMs: &near}, false); err != nil {
		t.Fatal(err)
	}

	jobs := s.List(true)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name != "near" || jobs[1].Name != "far" {
		t.Errorf("jobs not ordered by next run: %s, %s", jobs[0].Name, jobs[1].Name)
	}
}

func TestEnable_Disable(t *testing.T) {
	s := newTestService(t)
	job, err := s.Add("poll", Payload{Task: "x"}, Schedule{Kind: KindEvery, EveryMs: int64p(1000)}, false)
	if err != nil {
		t.Fatal(err)
	}

	updated, ok := s.Enable(job.ID, false)
	if !ok {
		t.Fatal("job not found")
	}
	if updated.Enabled {
		t.Error("job still enabled")
	}
	if updated.State.NextRunAtMs != nil {
		t.Error("disabled job keeps a next run time")
	}

	if got := s.List(false); len(got) != 0 {
		t.Errorf("disabled job appears in enabled-only listing: %v", got)
	}

	updated, _ = s.Enable(job.ID, true)
	if !updated.Enabled || updated.State.NextRunAtMs == nil {
		t.Error("re-enable did not restore scheduling")
	}
}

func TestRemove(t *testing.T) {
	s := newTestService(t)
	job, err := s.Add("gone", Payload{Task: "x"}, Schedule{Kind: KindEvery, EveryMs: int64p(1000)}, false)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Remove(job.ID) {
		t.Fatal("remove reported missing job")
	}
	if s.Remove(job.ID) {
		t.Error("second remove should report false")
	}
	if got := s.List(true); len(got) != 0 {
		t.Errorf("job still listed after remove: %v", got)
	}
}

func TestRun_ExecutesThroughCallback(t *testing.T) {
	s := newTestService(t)
	var gotTask string
	s.SetOnJob(func(_ context.Context, job Job) (string, error) {
		gotTask = job.Payload.Task
		return "done", nil
	})

	job, err := s.Add("now", Payload{Task: "organize downloads"}, Schedule{Kind: KindEvery, EveryMs: int64p(60_000)}, false)
	if err != nil {
		t.Fatal(err)
	}

	if !s.Run(context.Background(), job.ID, false) {
		t.Fatal("run reported missing job")
	}
	if gotTask != "organize downloads" {
		t.Errorf("callback got task %q", gotTask)
	}

	jobs := s.List(true)
	if jobs[0].State.LastStatus == nil || *jobs[0].State.LastStatus != "ok" {
		t.Errorf("last status = %v, want ok", jobs[0].State.LastStatus)
	}
	if jobs[0].State.LastRunAtMs == nil {
		t.Error("last run time not recorded")
	}
}

func TestRun_DisabledNeedsForce(t *testing.T) {
	s := newTestService(t)
	ran := false
	s.SetOnJob(func(context.Context, Job) (string, error) {
		ran = true
		return "", nil
	})

	job, err := s.Add("off", Payload{Task: "x"}, Schedule{Kind: KindEvery, EveryMs: int64p(1000)}, false)
	if err != nil {
		t.Fatal(err)
	}
	s.Enable(job.ID, false)

	if s.Run(context.Background(), job.ID, false) {
		t.Error("disabled job ran without force")
	}
	if ran {
		t.Error("callback invoked for disabled job")
	}
	if !s.Run(context.Background(), job.ID, true) {
		t.Error("force run failed")
	}
	if !ran {
		t.Error("callback not invoked on forced run")
	}
}

func TestOneTimeJob_DeletedAfterRun(t *testing.T) {
	s := newTestService(t)
	s.SetOnJob(func(context.Context, Job) (string, error) { return "", nil })

	at := nowMs() + 3_600_000
	job, err := s.Add("once", Payload{Task: "x"}, Schedule{Kind: KindAt, AtMs: &at}, true)
	if err != nil {
		t.Fatal(err)
	}

	s.Run(context.Background(), job.ID, false)
	if got := s.List(true); len(got) != 0 {
		t.Errorf("one-time job not deleted after run: %v", got)
	}
}

func TestPersistence_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	s1 := NewService(path)
	job, err := s1.Add("persist", Payload{Task: "remember me"}, Schedule{Kind: KindEvery, EveryMs: int64p(1000)}, false)
	if err != nil {
		t.Fatal(err)
	}

	s2 := NewService(path)
	jobs := s2.List(true)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job after reload, got %d", len(jobs))
	}
	if jobs[0].ID != job.ID || jobs[0].Payload.Task != "remember me" {
		t.Errorf("reloaded job differs: %+v", jobs[0])
	}
}

func TestFailedRun_RecordsError(t *testing.T) {
	s := newTestService(t)
	s.SetOnJob(func(context.Context, Job) (string, error) {
		return "", context.DeadlineExceeded
	})

	job, err := s.Add("flaky", Payload{Task: "x"}, Schedule{Kind: KindEvery, EveryMs: int64p(1000)}, false)
	if err != nil {
		t.Fatal(err)
	}
	s.Run(context.Background(), job.ID, false)

	got := s.List(true)[0]
	if got.State.LastStatus == nil || *got.State.LastStatus != "error" {
		t.Errorf("last status = %v, want error", got.State.LastStatus)
	}
	if got.State.LastError == nil {
		t.Error("last error not recorded")
	}
	if got.State.NextRunAtMs == nil {
		t.Error("recurring job lost its next run after a failure")
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
