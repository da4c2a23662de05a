package api

import (
	"testing"
	"time"
)

func TestJobLifecycle(t *testing.T) {
	m := NewJobManager()

	id, snapshot := m.CreateJob("practice.pdf")
	if snapshot.Status != JobStatusPending {
		t.Fatalf("status = %s, want pending", snapshot.Status)
	}
	if snapshot.TestName != "practice.pdf" {
		t.Errorf("test name = %q", snapshot.TestName)
	}

	m.MarkProcessing(id)
	m.SetEstimate(id, 45)
	m.UpdateProgress(id, "retrieve", "Finding relevant course material", 55, 100)

	job, ok := m.GetJob(id)
	if !ok {
		t.Fatal("job not found")
	}
	if job.Status != JobStatusProcessing || job.Step != "retrieve" {
		t.Errorf("job = %s/%s, want processing/retrieve", job.Status, job.Step)
	}
	if job.Percent != 55 {
		t.Errorf("percent = %d, want 55", job.Percent)
	}
	if job.EstimateSecs != 45 {
		t.Errorf("estimate = %d, want 45", job.EstimateSecs)
	}

	m.MarkCompleted(id, AnalysisResult{AnalysisID: 7, ScorePercent: 50})
	job, _ = m.GetJob(id)
	if job.Status != JobStatusComplete || job.Percent != 100 {
		t.Errorf("job = %s/%d%%, want complete/100%%", job.Status, job.Percent)
	}
	if job.Result == nil || job.Result.AnalysisID != 7 {
		t.Errorf("result = %+v", job.Result)
	}
}

func TestJobFailure(t *testing.T) {
	m := NewJobManager()
	id, _ := m.CreateJob("practice.pdf")

	m.MarkProcessing(id)
	m.MarkFailed(id, "  provider down \n")

	job, _ := m.GetJob(id)
	if job.Status != JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Error != "provider down" {
		t.Errorf("error = %q, want trimmed message", job.Error)
	}
}

func TestJobSnapshotsAreCopies(t *testing.T) {
	m := NewJobManager()
	id, _ := m.CreateJob("practice.pdf")
	m.MarkCompleted(id, AnalysisResult{AnalysisID: 1})

	first, _ := m.GetJob(id)
	first.Result.AnalysisID = 99
	first.Status = "mangled"

	second, _ := m.GetJob(id)
	if second.Result.AnalysisID != 1 || second.Status != JobStatusComplete {
		t.Fatal("mutating a snapshot leaked into the stored job")
	}
}

func TestJobElapsedStopsAfterCompletion(t *testing.T) {
	m := NewJobManager()
	id, _ := m.CreateJob("practice.pdf")
	m.MarkProcessing(id)
	m.MarkCompleted(id, AnalysisResult{})

	first, _ := m.GetJob(id)
	time.Sleep(10 * time.Millisecond)
	second, _ := m.GetJob(id)
	if first.ElapsedSecs != second.ElapsedSecs {
		t.Errorf("elapsed kept growing after completion: %d then %d", first.ElapsedSecs, second.ElapsedSecs)
	}
}

func TestGetJobUnknownID(t *testing.T) {
	m := NewJobManager()
	if _, ok := m.GetJob("nope"); ok {
		t.Fatal("unknown id reported as found")
	}
}
