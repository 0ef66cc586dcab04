package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/errors"
)

// CreateForge starts a generation task for a context.
func (c *Client) CreateForge(ctx context.Context, req ForgeCreateRequest) (*ForgeCreateResponse, error) {
	if req.ContextID == "" {
		return nil, errors.NewInvalidRequest("context_id is required")
	}
	out := &ForgeCreateResponse{}
	if err := c.call(ctx, "forge", "forge create response", http.MethodPost, ForgeCreatePath, req, out); err != nil {
		return nil, err
	}
	c.logger.Info("forge task created", zap.String("task_id", out.TaskID), zap.String("context_id", req.ContextID))
	return out, nil
}

// ForgeStatus fetches the current status of a task.
func (c *Client) ForgeStatus(ctx context.Context, taskID string) (*ForgeStatusResponse, error) {
	out := &ForgeStatusResponse{}
	path := ForgeStatusPath + url.PathEscape(taskID)
	if err := c.call(ctx, "forge", "forge status", http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ForgeAssets lists generation assets already attached to a context.
func (c *Client) ForgeAssets(ctx context.Context, contextID string) (*ForgeAssetsResponse, error) {
	out := &ForgeAssetsResponse{}
	path := ForgeAssetsPath + "?context_id=" + url.QueryEscape(contextID)
	if err := c.call(ctx, "forge", "forge assets", http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// PollForge polls a task until it completes, fails, or the polling bound
// elapses. onProgress, when set, receives every server-reported percentage.
// The bound is measured from loop entry and no wait ever extends past it.
func (c *Client) PollForge(ctx context.Context, taskID string, onProgress func(percent int)) (*ForgeStatusResponse, error) {
	start := c.clock.Now()

	for {
		if ctx.Err() != nil {
			return nil, errors.NewAborted(ctx.Err())
		}
		elapsed := c.clock.Since(start)
		if elapsed >= c.maxPoll {
			return nil, errors.NewTimeout(fmt.Sprintf("forge polling timed out after %s", c.maxPoll))
		}

		status, err := c.ForgeStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(status.ProgressPercent)
		}

		switch status.Status {
		case TaskCompleted:
			return status, nil
		case TaskFailed:
			return nil, errors.NewGenerationFailed(taskID, status.ErrorMessage)
		}

		wait := c.pollInterval
		if remaining := c.maxPoll - c.clock.Since(start); remaining < wait {
			wait = remaining
		}
		if wait <= 0 {
			continue
		}

		timer := c.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.NewAborted(ctx.Err())
		case <-timer.Chan():
		}
	}
}
