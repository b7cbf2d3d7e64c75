package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/david/assembly-tracker/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type backgroundJob struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

// maxFinishedJobs caps how many finished jobs stay queryable.
const maxFinishedJobs = 50

func (s *Server) handleForceRefresh(c echo.Context) error {
	dataset := c.Param("dataset")
	if dataset != models.DatasetBills && dataset != models.DatasetVotes {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown dataset: " + dataset})
	}
	member := strings.TrimSpace(c.QueryParam("member_name"))
	if member == "" {
		member = s.defaultMember
	}
	if member == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "member_name is required"})
	}

	return s.startJob(c, "refresh:"+dataset, func(ctx context.Context) (any, error) {
		value, err := s.datasets.ForceRefresh(ctx, dataset, member)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"dataset":     dataset,
			"member_name": member,
			"count":       countOf(value),
		}, nil
	})
}

func (s *Server) handleRetrySummaries(c echo.Context) error {
	if s.retrier == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "summary retry is not configured"})
	}
	return s.startJob(c, "retry-summaries", func(ctx context.Context) (any, error) {
		updated, err := s.retrier.RetryFailed(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"updated": updated}, nil
	})
}

// startJob runs fn in the background and answers 202 with the job id. Only
// one job of a kind runs at a time.
func (s *Server) startJob(c echo.Context, kind string, fn func(ctx context.Context) (any, error)) error {
	s.jobMu.Lock()
	if id, ok := s.running[kind]; ok {
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{
			"error":  fmt.Sprintf("A %s job is already running", kind),
			"job_id": id,
		})
	}

	jobCtx, jobCancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), s.jobTimeout)
	job := &backgroundJob{
		ID:        uuid.New().String()[:8],
		Kind:      kind,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.jobs[job.ID] = job
	s.running[kind] = job.ID
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		result, err := fn(jobCtx)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		delete(s.running, kind)
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			log.Printf("[%s-job %s] failed: %v", kind, job.ID, err)
		} else {
			job.Status = "completed"
			job.Result = result
			log.Printf("[%s-job %s] completed in %s", kind, job.ID, job.EndedAt.Sub(job.StartedAt))
		}
		s.pruneJobsLocked()
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Job started",
		"job_id":  job.ID,
		"poll":    fmt.Sprintf("/api/admin/job/%s", job.ID),
	})
}

func (s *Server) pruneJobsLocked() {
	finished := 0
	var oldest *backgroundJob
	for _, job := range s.jobs {
		if job.Status == "running" {
			continue
		}
		finished++
		if oldest == nil || job.EndedAt.Before(oldest.EndedAt) {
			oldest = job
		}
	}
	if finished > maxFinishedJobs && oldest != nil {
		delete(s.jobs, oldest.ID)
	}
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job, ok := s.jobs[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]any{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func countOf(value any) int {
	switch v := value.(type) {
	case []models.Bill:
		return len(v)
	case []models.Vote:
		return len(v)
	default:
		return 0
	}
}
