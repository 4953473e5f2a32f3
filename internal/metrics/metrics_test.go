// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(StorageErrors.WithLabelValues("insert_marker"))

	RecordDBQuery("insert_marker", 2*time.Millisecond, nil)
	RecordDBQuery("insert_marker", 3*time.Millisecond, errors.New("disk full"))

	if got := testutil.ToFloat64(StorageErrors.WithLabelValues("insert_marker")) - before; got != 1 {
		t.Errorf("storage errors delta = %v, want 1", got)
	}

	m := &dto.Metric{}
	obs, ok := DBQueryDuration.WithLabelValues("insert_marker").(interface{ Write(*dto.Metric) error })
	if !ok {
		t.Fatal("histogram does not expose Write")
	}
	if err := obs.Write(m); err != nil {
		t.Fatal(err)
	}
	if m.GetHistogram().GetSampleCount() < 2 {
		t.Errorf("sample count = %d, want >= 2", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordPushResult(t *testing.T) {
	tests := []struct {
		name     string
		ok, gone bool
		label    string
	}{
		{"delivered", true, false, "ok"},
		{"gone", false, true, "gone"},
		{"failed", false, false, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(PushDeliveries.WithLabelValues(tt.label))
			RecordPushResult(tt.ok, tt.gone)
			if got := testutil.ToFloat64(PushDeliveries.WithLabelValues(tt.label)) - before; got != 1 {
				t.Errorf("%s delta = %v, want 1", tt.label, got)
			}
		})
	}
}

func TestRecordEventPublish(t *testing.T) {
	before := testutil.ToFloat64(EventsPublished.WithLabelValues("marker_added", "error"))
	RecordEventPublish("marker_added", errors.New("nats down"))
	if got := testutil.ToFloat64(EventsPublished.WithLabelValues("marker_added", "error")) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}
