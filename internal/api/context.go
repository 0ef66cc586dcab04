package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/errors"
)

// Context is a fetched backend context already mapped into capsule data.
type Context struct {
	ID     string
	Source capsule.Source
	Data   capsule.Data
}

// FetchHistory fetches the history context for year.
func (c *Client) FetchHistory(ctx context.Context, year int) (*HistoryContext, error) {
	out := &HistoryContext{}
	path := HistoryPath + strconv.Itoa(year)
	if err := c.call(ctx, "context", "history context", http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDaily fetches the daily context. date is YYYY-MM-DD or empty for today.
func (c *Client) FetchDaily(ctx context.Context, date string) (*DailyContext, error) {
	out := &DailyContext{}
	path := DailyPath
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	if err := c.call(ctx, "context", "daily context", http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFossil fetches the future-fossil context for year.
func (c *Client) FetchFossil(ctx context.Context, year int) (*FossilContext, error) {
	out := &FossilContext{}
	path := FossilPath + strconv.Itoa(year)
	if err := c.call(ctx, "context", "fossil context", http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchContext fetches year from source and maps it into capsule data.
func (c *Client) FetchContext(ctx context.Context, source capsule.Source, year int) (*Context, error) {
	switch source {
	case capsule.SourceHistory:
		h, err := c.FetchHistory(ctx, year)
		if err != nil {
			return nil, err
		}
		return &Context{ID: h.ID, Source: source, Data: h.Capsule(year)}, nil
	case capsule.SourceDaily:
		d, err := c.FetchDaily(ctx, "")
		if err != nil {
			return nil, err
		}
		return &Context{ID: d.ID, Source: source, Data: d.Capsule(year)}, nil
	case capsule.SourceFossil:
		f, err := c.FetchFossil(ctx, year)
		if err != nil {
			return nil, err
		}
		return &Context{ID: f.ID, Source: source, Data: f.Capsule(year)}, nil
	}
	return nil, errors.NewInvalidRequest("unknown context source: " + string(source))
}
