package loadgen

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/landaudiogo/cc-assignment-2023/internal/hostsfile"
	"github.com/landaudiogo/cc-assignment-2023/internal/metrics"
)

// outOfBoundsPath is the endpoint the load generator queries for
// out-of-bounds measurements. Target servers have been seen exposing this
// under both /temperature/out-of-bounds and /temperature/out-of-range; this
// dispatcher standardizes on the former rather than supporting both.
const outOfBoundsPath = "/temperature/out-of-bounds"

// Dispatcher is the per-host long-lived task that consumes batches from its
// own channel and issues bounded-concurrency, retrying, response-validating
// HTTP requests against one Host.
type Dispatcher struct {
	Host        hostsfile.Host
	HTTPClient  *http.Client
	MaxInFlight int
	Retries     int
	LagSeconds  time.Duration
	Metrics     *metrics.LoadGenMetrics
	Log         *logrus.Entry

	// Sleep lets tests substitute a context-aware, non-blocking sleep;
	// nil uses a real timer.
	Sleep func(ctx context.Context, d time.Duration)
}

func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) {
	if d.Sleep != nil {
		d.Sleep(ctx, dur)
		return
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Run consumes batches until ctx is canceled or the channel closes. The
// first batch is delayed by LagSeconds so the target service has time to
// ingest the documents the generator is about to query.
func (d *Dispatcher) Run(ctx context.Context, batches <-chan Batch) error {
	if d.HTTPClient == nil {
		d.HTTPClient = http.DefaultClient
	}
	if d.MaxInFlight <= 0 {
		d.MaxInFlight = 1
	}

	if d.LagSeconds > 0 {
		d.sleep(ctx, d.LagSeconds)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			d.dispatchBatch(ctx, batch)
		}
	}
}

// dispatchBatch implements the per-host dispatch algorithm: record the
// target rate, run a concurrent 1-second floor timer alongside bounded
// dispatch, then record the effective rate once both have completed.
func (d *Dispatcher) dispatchBatch(ctx context.Context, batch Batch) {
	d.Metrics.TargetRequestRate.WithLabelValues(d.Host.Name).Set(float64(len(batch)))
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	floor := time.NewTimer(time.Second)
	defer floor.Stop()

	sem := semaphore.NewWeighted(int64(d.MaxInFlight))
	var wg sync.WaitGroup
	for _, q := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(q Query) {
			defer wg.Done()
			defer sem.Release(1)
			d.execute(ctx, q)
		}(q)
	}
	wg.Wait()

	select {
	case <-floor.C:
	case <-ctx.Done():
	}

	elapsed := time.Since(start).Seconds()
	effective := 0.0
	if elapsed > 0 {
		effective = math.Round(float64(len(batch)) / elapsed)
	}
	d.Metrics.EffectiveRequestRate.WithLabelValues(d.Host.Name).Set(effective)
}

// execute attempts q up to Retries+1 times, retrying only on ServerError,
// and records the terminal outcome in metrics.
func (d *Dispatcher) execute(ctx context.Context, q Query) {
	endpoint := q.Kind.String()
	attempts := d.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		latency, err := d.attempt(ctx, q)
		if err == nil {
			d.Metrics.ResponseCount.WithLabelValues(d.Host.Name, endpoint, string(ResponseOK)).Inc()
			d.Metrics.ResponseRTT.WithLabelValues(d.Host.Name, endpoint).Observe(latency.Seconds())
			return
		}
		lastErr = err

		kind := ResponseServerError
		if re, ok := err.(*ResponseError); ok {
			kind = re.Kind
		}
		if !kind.Retryable() {
			break
		}
	}

	kind := ResponseServerError
	if re, ok := lastErr.(*ResponseError); ok {
		kind = re.Kind
	}
	d.Metrics.ResponseCount.WithLabelValues(d.Host.Name, endpoint, string(kind)).Inc()
	if d.Log != nil {
		d.Log.WithFields(logrus.Fields{"host": d.Host.Name, "endpoint": endpoint}).WithError(lastErr).Debug("request failed")
	}
}

// attempt issues one HTTP request for q and validates its response,
// returning the round-trip latency on success.
func (d *Dispatcher) attempt(ctx context.Context, q Query) (time.Duration, error) {
	req, err := d.buildRequest(ctx, q)
	if err != nil {
		return 0, newResponseError(ResponseBodyDecodingError, err)
	}

	start := time.Now()
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return 0, newResponseError(ResponseServerError, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, newResponseError(ResponseBodyDecodingError, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode >= 500 {
		return 0, newResponseError(ResponseServerError, fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return 0, newResponseError(ResponseBodyDecodingError, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := validate(q, body); err != nil {
		return 0, err
	}
	return latency, nil
}

func (d *Dispatcher) buildRequest(ctx context.Context, q Query) (*http.Request, error) {
	var path string
	values := url.Values{}
	values.Set("experiment-id", q.Doc.ExperimentID)

	switch q.Kind {
	case QueryTemperature:
		path = "/temperature"
		values.Set("start-time", strconv.FormatFloat(q.Start, 'f', -1, 64))
		values.Set("end-time", strconv.FormatFloat(q.End, 'f', -1, 64))
	case QueryOutOfBounds:
		path = outOfBoundsPath
	default:
		return nil, fmt.Errorf("loadgen: unknown query kind %v", q.Kind)
	}

	target := d.Host.BaseURL + path + "?" + values.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}
