package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/flemzord/pluginhost/internal/job"
)

// Acknowledgements returned by a Registrar.
const (
	AckOK       = "ok"
	AckError    = "error"
	AckDisabled = "disabled"
	AckTimeout  = "timeout"
)

// Registrar is the job registry as seen from the cron loop. Every cron job
// is announced before it is spawned and withdrawn after it is reaped.
type Registrar interface {
	RegisterJob(ctx context.Context, id string) string
	RegisterTermination(ctx context.Context, id string) string
	// TerminationRequests lists the cron job ids someone asked to stop.
	TerminationRequests(ctx context.Context) ([]string, error)
}

// LocalRegistrar talks to the in-process cron table.
type LocalRegistrar struct {
	Table *job.CronTable
	// Enabled gates registration; nil means always enabled.
	Enabled func() bool
}

// Compile-time interface check.
var _ Registrar = (*LocalRegistrar)(nil)

func (r *LocalRegistrar) enabled() bool { return r.Enabled == nil || r.Enabled() }

// RegisterJob implements Registrar.
func (r *LocalRegistrar) RegisterJob(_ context.Context, id string) string {
	if !r.enabled() {
		return AckDisabled
	}
	if err := r.Table.Register(id); err != nil {
		return AckError
	}
	return AckOK
}

// RegisterTermination implements Registrar. It is not gated, so jobs
// stopped by disabling the plugin are still withdrawn.
func (r *LocalRegistrar) RegisterTermination(_ context.Context, id string) string {
	if err := r.Table.Unregister(id); err != nil {
		return AckError
	}
	return AckOK
}

// TerminationRequests implements Registrar. The table is read even when the
// plugin is disabled so that disabling can stop running jobs.
func (r *LocalRegistrar) TerminationRequests(context.Context) ([]string, error) {
	return r.Table.TerminationRequests(), nil
}

// HTTPRegistrar talks to the registry endpoints of a host over HTTP.
// Each call is retried with exponential backoff; when every attempt fails,
// the synthetic "timeout" acknowledgement is returned.
type HTTPRegistrar struct {
	BaseURL string
	Client  *http.Client
	// Attempts bounds the tries per call. Defaults to 5.
	Attempts uint
	// InitialInterval is the first backoff delay. Defaults to 50ms.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay. Defaults to 1s.
	MaxInterval time.Duration
}

// Compile-time interface check.
var _ Registrar = (*HTTPRegistrar)(nil)

type ackResponse struct {
	Ack    string   `json:"ack"`
	JobIDs []string `json:"job_ids"`
}

// RegisterJob implements Registrar.
func (r *HTTPRegistrar) RegisterJob(ctx context.Context, id string) string {
	resp, err := r.post(ctx, "/registercronjob/", map[string]string{"job_id": id})
	if err != nil {
		return AckTimeout
	}
	return resp.Ack
}

// RegisterTermination implements Registrar.
func (r *HTTPRegistrar) RegisterTermination(ctx context.Context, id string) string {
	resp, err := r.post(ctx, "/registercrontermination/", map[string]string{"job_id": id})
	if err != nil {
		return AckTimeout
	}
	return resp.Ack
}

// TerminationRequests implements Registrar.
func (r *HTTPRegistrar) TerminationRequests(ctx context.Context) ([]string, error) {
	resp, err := r.post(ctx, "/terminationrequests/", map[string]any{"context": map[string]any{}})
	if err != nil {
		return nil, err
	}
	return resp.JobIDs, nil
}

func (r *HTTPRegistrar) post(ctx context.Context, path string, body any) (ackResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return ackResponse{}, fmt.Errorf("cron: encoding request: %w", err)
	}
	url := strings.TrimSuffix(r.BaseURL, "/") + path

	op := func() (ackResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return ackResponse{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client().Do(req)
		if err != nil {
			return ackResponse{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return ackResponse{}, fmt.Errorf("cron: %s returned %s", path, resp.Status)
		}

		var out ackResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return ackResponse{}, fmt.Errorf("cron: decoding %s response: %w", path, err)
		}
		return out, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(r.backOff()),
		backoff.WithMaxTries(r.attempts()),
	)
}

func (r *HTTPRegistrar) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: 2 * time.Second}
}

func (r *HTTPRegistrar) attempts() uint {
	if r.Attempts > 0 {
		return r.Attempts
	}
	return 5
}

func (r *HTTPRegistrar) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	b.MaxInterval = time.Second
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	return b
}
