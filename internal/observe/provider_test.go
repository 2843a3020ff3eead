package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewProviders_ResourceOnTargetInfo(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p, err := NewProviders(ProviderConfig{
		ServiceVersion: "1.2.3",
		Transport:      "realtime",
		AudioBackend:   "mock",
		CaptureRate:    16000,
		PlaybackRate:   24000,
		Registerer:     reg,
	})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordSessionStart(context.Background(), "ok", 0.2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	labels := map[string]string{}
	var sawSessionMetric bool
	for _, f := range families {
		if f.GetName() == "target_info" {
			for _, lp := range f.GetMetric()[0].GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
		}
		if strings.HasPrefix(f.GetName(), "parley_session_start") {
			sawSessionMetric = true
		}
	}
	if !sawSessionMetric {
		t.Error("session start metric not exported")
	}

	want := map[string]string{
		"service_name":              "parley",
		"service_version":           "1.2.3",
		"parley_transport":          "realtime",
		"parley_audio_backend":      "mock",
		"parley_audio_capture_rate": "16000",
	}
	for k, v := range want {
		if labels[k] != v {
			t.Errorf("target_info %s = %q, want %q", k, labels[k], v)
		}
	}
	if labels["service_instance_id"] == "" {
		t.Error("target_info has no service_instance_id")
	}
}
