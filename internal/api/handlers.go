package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/usecase"
)

// TriggerResponse is the body of both trigger endpoints.
type TriggerResponse struct {
	Success    bool                 `json:"success"`
	ItemsAdded int                  `json:"itemsAdded"`
	Items      []domain.CuratedItem `json:"items"`
}

// ErrorResponse is returned whenever a request fails.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// LearningResponse is the current persisted selection.
type LearningResponse struct {
	Learning  []domain.CuratedItem `json:"learning"`
	UpdatedAt *time.Time           `json:"learningUpdatedAt"`
}

type handlers struct {
	runner     Runner
	documents  DocumentReader
	secret     string
	runTimeout time.Duration
	logger     *slog.Logger
}

func (h *handlers) requireBearer(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || h.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	c.Next()
}

func (h *handlers) trigger(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "pipeline is not configured"})
		return
	}

	// The run outlives a caller that hangs up; only the run timeout stops it.
	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	summary, err := h.runner.Run(ctx, usecase.RunOptions{})
	if err != nil {
		status := http.StatusInternalServerError
		// A held lease is not a fault: the other run is already doing this work.
		if errors.Is(err, ports.ErrRunInProgress) {
			status = http.StatusConflict
		}
		if h.logger != nil {
			h.logger.Warn("triggered run failed", "method", c.Request.Method, "status", status, "error", err)
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	items := summary.Items
	if items == nil {
		items = []domain.CuratedItem{}
	}
	added := 0
	if summary.Written {
		added = len(items)
	}
	c.JSON(http.StatusOK, TriggerResponse{Success: true, ItemsAdded: added, Items: items})
}

func (h *handlers) currentLearning(c *gin.Context) {
	if h.documents == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "document store is not configured"})
		return
	}

	doc, err := h.documents.Load(c.Request.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Error("load status document", "error", err)
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	learning := doc.Learning
	if learning == nil {
		learning = []domain.CuratedItem{}
	}
	c.JSON(http.StatusOK, LearningResponse{Learning: learning, UpdatedAt: doc.LearningUpdatedAt})
}
