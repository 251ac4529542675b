// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("compress", "ok", 100, 60, time.Millisecond)
	m.Observe("compress", "ok", 50, 30, time.Millisecond)
	m.Observe("decompress", "header error", 10, 0, time.Millisecond)

	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]float64{}
	for _, mf := range mfs {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range metric.GetLabel() {
				key += "," + l.GetValue()
			}
			switch {
			case metric.Counter != nil:
				got[key] = metric.GetCounter().GetValue()
			case metric.Histogram != nil:
				got[key] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	for key, want := range map[string]float64{
		"tight_operations_total,compress,ok":             2,
		"tight_operations_total,decompress,header error": 1,
		"tight_bytes_total,in,compress":                  150,
		"tight_bytes_total,out,compress":                 90,
		"tight_operation_duration_seconds,compress":      2,
	} {
		if got[key] != want {
			t.Errorf("%s: got %v, want %v", key, got[key], want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.Observe("compress", "ok", 1, 1, time.Second)
	path := filepath.Join(t.TempDir(), "tight.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `tight_operations_total{op="compress",status="ok"} 1`) {
		t.Errorf("unexpected contents:\n%s", data)
	}
}
