package api

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/errors"
)

// maxModelBytes caps a single model download.
const maxModelBytes = 64 << 20

// FetchModel downloads model bytes through an authenticated request.
// Used for proxy URLs, which downstream loaders cannot fetch themselves
// because they cannot attach the app id header.
func (c *Client) FetchModel(ctx context.Context, modelURL string) ([]byte, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, modelURL, nil)
	if err != nil {
		return nil, "", errors.NewInvalidRequest("invalid model url: " + err.Error())
	}
	req.Header.Set(AppIDHeader, c.appID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", c.classify(ctx, callCtx, http.MethodGet, ProxyModelPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		env := decodeEnvelope(raw, "proxy", resp.StatusCode)
		return nil, "", errors.NewUpstream(resp.StatusCode, env.Code, env.Message)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxModelBytes+1))
	if err != nil {
		return nil, "", c.classify(ctx, callCtx, http.MethodGet, ProxyModelPath, err)
	}
	if len(data) > maxModelBytes {
		return nil, "", errors.NewInvalidRequest("model exceeds maximum download size")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "model/gltf-binary"
	}
	c.logger.Debug("model downloaded", zap.Int("bytes", len(data)), zap.String("content_type", contentType))
	return data, contentType, nil
}
