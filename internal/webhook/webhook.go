// Package webhook forwards completion notifications to an HTTP endpoint.
//
// Each terminal job is POSTed as JSON. A 2xx answer acknowledges the
// notification; anything else is returned as an error so the listener
// loop releases the notification and delivers it again on a later poll.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/internal/version"
	"github.com/teranos/boss/logger"
)

// Request headers set on every delivery
const (
	HeaderJobID = "X-Boss-Job-Id"
	HeaderQueue = "X-Boss-Queue"
	HeaderState = "X-Boss-State"
)

const maxErrorBody = 512

// Options configures a Forwarder
type Options struct {
	Timeout      time.Duration     // Per-delivery timeout (default 10s)
	AllowPrivate bool              // Permit loopback and private destinations
	MaxRedirects int               // Default 5
	Headers      map[string]string // Extra headers, e.g. Authorization
}

// Forwarder POSTs terminal jobs to one URL
type Forwarder struct {
	target  *url.URL
	client  *http.Client
	guard   guard
	headers map[string]string
	logger  *zap.SugaredLogger
}

// New validates target and builds a Forwarder
func New(target string, opts Options, log *zap.SugaredLogger) (*Forwarder, error) {
	if log == nil {
		log = logger.Logger
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrap(err, "invalid webhook URL")
	}
	g := guard{allowPrivate: opts.AllowPrivate}
	if err := g.checkURL(u); err != nil {
		return nil, errors.WithHint(err, "pass --allow-private to deliver to local or private addresses")
	}

	f := &Forwarder{
		target:  u,
		guard:   g,
		headers: opts.Headers,
		logger:  log.Named("webhook"),
	}
	f.client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: g.transport(),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return errors.Newf("stopped after %d redirects", opts.MaxRedirects)
			}
			return errors.Wrap(g.checkURL(req.URL), "redirect blocked")
		},
	}
	return f, nil
}

// Listener returns the boss.Listener that delivers each job
func (f *Forwarder) Listener() boss.Listener {
	return f.Deliver
}

// Deliver POSTs job and returns an error unless the endpoint answered 2xx
func (f *Forwarder) Deliver(ctx context.Context, job *boss.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "failed to encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.target.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("boss/%s", version.Get().Version))
	req.Header.Set(HeaderJobID, job.ID)
	req.Header.Set(HeaderQueue, job.Queue)
	req.Header.Set(HeaderState, string(job.State))
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return errors.WithDetailf(errors.Wrap(err, "webhook delivery failed"), "Job ID: %s", job.ID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.WithDetailf(
			errors.Newf("webhook answered %s", resp.Status),
			"Response: %s", bytes.TrimSpace(snippet),
		)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	f.logger.Debugw("Delivered webhook",
		logger.FieldJobID, job.ID,
		logger.FieldQueue, job.Queue,
		"status", resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return nil
}
