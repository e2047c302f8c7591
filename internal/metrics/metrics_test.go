// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   string
	}{
		{0, "transport"},
		{200, "2xx"},
		{204, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		if got := StatusClass(tt.status); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRecordUpstreamRequest(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test_op", "5xx"))
	RecordUpstreamRequest("test_op", 503, 15*time.Millisecond)
	RecordUpstreamRequest("test_op", 502, 5*time.Millisecond)

	if got := testutil.ToFloat64(UpstreamRequests.WithLabelValues("test_op", "5xx")) - before; got != 2 {
		t.Errorf("UpstreamRequests{test_op,5xx} delta = %v, want 2", got)
	}
}

func TestRecordSyncPass(t *testing.T) {
	RecordSyncPass("full", "metrics-test-dirty", time.Second, false)
	if got := testutil.ToFloat64(SyncLastSuccess.WithLabelValues("metrics-test-dirty")); got != 0 {
		t.Errorf("SyncLastSuccess after dirty pass = %v, want 0", got)
	}

	RecordSyncPass("full", "metrics-test-clean", time.Second, true)
	if got := testutil.ToFloat64(SyncLastSuccess.WithLabelValues("metrics-test-clean")); got <= 0 {
		t.Errorf("SyncLastSuccess after clean pass = %v, want > 0", got)
	}
}

func TestRecordSyncOutcome(t *testing.T) {
	before := testutil.ToFloat64(SyncOutcomes.WithLabelValues("partial", "skipped_not_in_truth"))
	RecordSyncOutcome("partial", "skipped_not_in_truth")
	if got := testutil.ToFloat64(SyncOutcomes.WithLabelValues("partial", "skipped_not_in_truth")) - before; got != 1 {
		t.Errorf("SyncOutcomes delta = %v, want 1", got)
	}
}
