package http

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"jobsift/internal/crawl"
	"jobsift/internal/model"
	"jobsift/internal/store"
)

type ListJobsResponse struct {
	Success bool           `json:"success"`
	Code    string         `json:"code,omitempty"`
	Error   string         `json:"error,omitempty"`
	Jobs    []model.Record `json:"jobs,omitempty"`
}

type JobDetailResponse struct {
	Success bool          `json:"success"`
	Code    string        `json:"code,omitempty"`
	Error   string        `json:"error,omitempty"`
	Job     *model.Record `json:"job,omitempty"`
}

type FlagRequest struct {
	URL   string `json:"url"`
	Value *bool  `json:"value,omitempty"`
}

type FlagResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// jobsListHandler lists stored jobs, newest first. Query params:
// rejected=true|false, minScore=N, limit=N.
func jobsListHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	var filter store.ListFilter

	if v := c.Query("rejected"); v != "" {
		rejected, err := strconv.ParseBool(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ListJobsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid rejected value; expected true or false",
			})
		}
		filter.Rejected = &rejected
	}

	if v := c.Query("minScore"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 10 {
			return c.Status(fiber.StatusBadRequest).JSON(ListJobsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid minScore value; expected 0-10",
			})
		}
		filter.MinScore = &n
	}

	filter.Limit = 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ListJobsResponse{
				Success: false,
				Code:    "BAD_REQUEST",
				Error:   "invalid limit value",
			})
		}
		if n > 500 {
			n = 500
		}
		filter.Limit = n
	}

	jobs, err := st.ListJobs(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ListJobsResponse{
			Success: false,
			Code:    "JOB_LIST_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(ListJobsResponse{Success: true, Jobs: jobs})
}

// jobDetailHandler returns one stored job by its URL. The URL is the
// primary key, so it arrives as a query param rather than a path
// segment.
func jobDetailHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)

	url := c.Query("url")
	if url == "" {
		return c.Status(fiber.StatusBadRequest).JSON(JobDetailResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "url query parameter is required",
		})
	}

	job, err := st.GetJob(c.Context(), url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(JobDetailResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(JobDetailResponse{
			Success: false,
			Code:    "JOB_GET_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(JobDetailResponse{Success: true, Job: &job})
}

func markHandler(c *fiber.Ctx) error {
	return flagHandler(c, (*store.Store).SetMarked)
}

func appliedHandler(c *fiber.Ctx) error {
	return flagHandler(c, (*store.Store).SetApplied)
}

func flagHandler(c *fiber.Ctx, set func(*store.Store, context.Context, string, bool) error) error {
	st := c.Locals("store").(*store.Store)

	var req FlagRequest
	if err := c.BodyParser(&req); err != nil || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(FlagResponse{
			Success: false,
			Code:    "BAD_REQUEST",
			Error:   "expected JSON body with a url field",
		})
	}

	// Absent value means set the flag.
	value := true
	if req.Value != nil {
		value = *req.Value
	}

	if err := set(st, c.Context(), req.URL, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(FlagResponse{
				Success: false,
				Code:    "NOT_FOUND",
				Error:   "job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(FlagResponse{
			Success: false,
			Code:    "JOB_UPDATE_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(FlagResponse{Success: true})
}

// progressHandler reports the live counters of an in-process crawl run.
func progressHandler(progress *crawl.Progress) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if progress == nil {
			return c.JSON(fiber.Map{"active": false})
		}
		s := progress.Summary()
		return c.JSON(fiber.Map{
			"active":     true,
			"total":      s.Total,
			"processed":  progress.Processed(),
			"succeeded":  s.Succeeded,
			"duplicates": s.Duplicates,
			"empty":      s.Empty,
			"errors":     s.Errors,
		})
	}
}
