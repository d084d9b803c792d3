// Package loki reads log lines out of a Loki instance through the
// query_range API, exposing each poll window as a batch of entries.
package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sluicekit/sluice"
	"github.com/sluicekit/sluice/config"
)

// Entry is a single log line returned by a range query.
type Entry struct {
	Timestamp time.Time
	Line      string
	Labels    map[string]string
}

// Source fetches entries for [since, until) windows, suitable for
// driving a sluice.PollingDriver.
type Source struct {
	cfg    config.LokiConfig
	client *http.Client
}

var _ sluice.WindowedSource[Entry] = (*Source)(nil)

// NewSource builds a windowed source from cfg. Query is a LogQL
// selector such as {job="app"}. Panics when URL or Query is empty.
func NewSource(cfg config.LokiConfig) *Source {
	if cfg.URL == "" {
		panic("loki: url cannot be empty")
	}
	if cfg.Query == "" {
		panic("loki: query cannot be empty")
	}
	if cfg.Limit == 0 {
		cfg.Limit = 1000
	}
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	return &Source{cfg: cfg, client: newHTTPClient(to)}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Fetch implements sluice.WindowedSource. Entries come back merged
// across streams and ordered by timestamp.
func (s *Source) Fetch(ctx context.Context, since, until time.Time) ([]Entry, error) {
	q := url.Values{}
	q.Set("query", s.cfg.Query)
	// Loki expects ns timestamps as decimal strings
	q.Set("start", strconv.FormatInt(since.UnixNano(), 10))
	q.Set("end", strconv.FormatInt(until.UnixNano(), 10))
	q.Set("limit", strconv.Itoa(s.cfg.Limit))
	q.Set("direction", "forward")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/loki/api/v1/query_range?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if s.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", s.cfg.TenantID)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("loki query failed http %d", resp.StatusCode)
	}

	var body queryRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode loki response: %w", err)
	}
	return flatten(body)
}

type queryRangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// flatten merges the per-stream value lists into one chronological
// slice so downstream batches see a single ordered feed.
func flatten(body queryRangeResponse) ([]Entry, error) {
	var entries []Entry
	for _, stream := range body.Data.Result {
		for _, v := range stream.Values {
			ns, err := strconv.ParseInt(v[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("loki timestamp %q: %w", v[0], err)
			}
			entries = append(entries, Entry{
				Timestamp: time.Unix(0, ns),
				Line:      v[1],
				Labels:    stream.Stream,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
