package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// AnalysisJob tracks one background practice-test analysis that the
// frontend polls.
type AnalysisJob struct {
	ID           string          `json:"jobId"`
	TestName     string          `json:"testName"`
	Status       string          `json:"status"`
	Step         string          `json:"step,omitempty"`
	Message      string          `json:"message,omitempty"`
	Current      int             `json:"current"`
	Total        int             `json:"total"`
	Percent      int             `json:"percent"`
	EstimateSecs int             `json:"estimateSecs"`
	ElapsedSecs  int             `json:"elapsedSecs"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	StartedAt    time.Time       `json:"-"`
	Result       *AnalysisResult `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*AnalysisJob
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*AnalysisJob),
	}
}

func (m *JobManager) CreateJob(testName string) (string, *AnalysisJob) {
	now := time.Now().UTC()
	job := &AnalysisJob{
		ID:        uuid.NewString(),
		TestName:  testName,
		Status:    JobStatusPending,
		Total:     100,
		CreatedAt: now,
		UpdatedAt: now,
		StartedAt: now,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

func (m *JobManager) GetJob(id string) (*AnalysisJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusProcessing
		job.StartedAt = time.Now().UTC()
	})
}

func (m *JobManager) SetEstimate(id string, secs int) {
	m.withJob(id, func(job *AnalysisJob) {
		job.EstimateSecs = secs
	})
}

func (m *JobManager) UpdateProgress(id, step, message string, current, total int) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
		job.Current = current
		job.Total = total
		job.Percent = percent(current, total)
	})
}

func (m *JobManager) MarkCompleted(id string, result AnalysisResult) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusComplete
		job.Step = "complete"
		job.Message = "Analysis complete"
		job.Current = 100
		job.Total = 100
		job.Percent = 100
		res := result
		job.Result = &res
	})
}

func (m *JobManager) MarkFailed(id string, msg string) {
	m.withJob(id, func(job *AnalysisJob) {
		job.Status = JobStatusFailed
		job.Error = strings.TrimSpace(msg)
	})
}

func (m *JobManager) withJob(id string, fn func(job *AnalysisJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

// clone snapshots the job for handlers so pollers never observe a job
// mid-update. ElapsedSecs is computed at snapshot time.
func (job *AnalysisJob) clone() *AnalysisJob {
	if job == nil {
		return nil
	}
	copyJob := *job
	if job.Result != nil {
		res := *job.Result
		copyJob.Result = &res
	}
	if job.Status == JobStatusProcessing || job.Status == JobStatusPending {
		copyJob.ElapsedSecs = int(time.Since(job.StartedAt).Seconds())
	} else {
		copyJob.ElapsedSecs = int(job.UpdatedAt.Sub(job.StartedAt).Seconds())
	}
	return &copyJob
}

func percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	p := current * 100 / total
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
