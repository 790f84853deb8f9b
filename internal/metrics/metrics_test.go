package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tribunal/internal/review"
)

func TestMetrics_WorkerDone(t *testing.T) {
	m := New()
	m.WorkerDone(review.LensQuality, 2*time.Second, 3, nil)
	m.WorkerDone(review.LensSecurityPerformance, time.Second, 0, errors.New("timeout"))
	m.WorkerDone(review.LensSecurityPerformance, time.Second, 0, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.workerFailed.WithLabelValues("security_performance")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.workerFailed.WithLabelValues("quality")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.workerLatency))
}

func TestMetrics_RoundDone(t *testing.T) {
	m := New()
	must := []review.Finding{{Severity: review.SeverityCritical}}
	m.RoundDone(&review.Round{Kind: review.RoundReview, Verdict: &review.Verdict{
		MustFix:           must,
		ShouldFix:         []review.Finding{{}, {}},
		Decision:          review.DecisionRequestChanges,
		DuplicatesRemoved: 2,
	}}, nil)
	m.RoundDone(&review.Round{Kind: review.RoundFollowUp}, errors.New("all reviewers failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues("review", "request_changes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rounds.WithLabelValues("follow_up", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("must_fix")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.findings.WithLabelValues("should_fix")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.duplicates))
}

func TestMetrics_Serve(t *testing.T) {
	m := New()
	m.WorkerDone(review.LensQuality, time.Second, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addr, err := m.Serve(ctx, "127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "tribunal_worker_latency_seconds"))
}

func TestMetrics_ServeBadAddr(t *testing.T) {
	_, err := New().Serve(context.Background(), "not-an-address", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
