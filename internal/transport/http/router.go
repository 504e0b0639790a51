package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"karli/internal/execution"
	"karli/internal/pipeline"
	"karli/internal/report"
	"karli/internal/store/runlog"
)

// Runner triggers a pipeline run.
type Runner interface {
	RunDaily(ctx context.Context) (*report.RunReport, error)
}

// RunStore serves recorded run history.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*report.RunReport, error)
	ListRuns(ctx context.Context, limit int) ([]report.RunReport, error)
	UserHistory(ctx context.Context, username string, limit int) ([]runlog.UserRunOutcome, error)
}

// AccountSource serves a user's live brokerage state.
type AccountSource interface {
	AccountSummary(ctx context.Context, username string) (execution.AccountSummary, error)
}

// Router exposes the run trigger and query endpoints.
type Router struct {
	runner   Runner
	runs     RunStore
	accounts AccountSource
}

func NewRouter(runner Runner, runs RunStore, accounts AccountSource) *Router {
	return &Router{runner: runner, runs: runs, accounts: accounts}
}

// Register mounts the API routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/run", r.handleTriggerRun)
	if r.runs != nil {
		group.GET("/runs", r.handleListRuns)
		group.GET("/runs/:id", r.handleGetRun)
	}
	group.GET("/users/:name/summary", r.handleUserSummary)
}

// handleTriggerRun runs the pipeline synchronously and returns its report.
// A run already in flight maps to 409: overlapping runs are skipped, never
// queued.
func (r *Router) handleTriggerRun(c *gin.Context) {
	rpt, err := r.runner.RunDaily(c.Request.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": report.ReasonRunInProgress})
		return
	}
	if err != nil && rpt == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// an aborted run still has a report worth returning
	c.JSON(http.StatusOK, rpt)
}

func (r *Router) handleListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	runs, err := r.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (r *Router) handleGetRun(c *gin.Context) {
	rpt, err := r.runs.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, runlog.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rpt)
}

// handleUserSummary returns the user's live brokerage snapshot plus recent
// run outcomes.
func (r *Router) handleUserSummary(c *gin.Context) {
	name := c.Param("name")
	resp := gin.H{"username": name}

	if r.accounts != nil {
		summary, err := r.accounts.AccountSummary(c.Request.Context(), name)
		if errors.Is(err, execution.ErrUnknownUser) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		resp["risk_tier"] = summary.RiskTier
		resp["account"] = summary.Account
		resp["positions"] = summary.Positions
	}

	if r.runs != nil {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
		if limit <= 0 {
			limit = 30
		}
		history, err := r.runs.UserHistory(c.Request.Context(), name, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["runs"] = history
	}

	c.JSON(http.StatusOK, resp)
}
