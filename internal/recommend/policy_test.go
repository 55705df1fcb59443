package recommend

import "testing"

func TestRecommend(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"severe degradation", Input{HealthScore: 0, PacketLossPct: 9.5, LatencyMs: 250, MLAnomaly: true}, ShiftToBroadband},
		{"clean link", Input{HealthScore: 100, LatencyMs: 50}, NoAction},
		{"anomalous but degraded", Input{HealthScore: 70, MLAnomaly: true}, MonitorClosely},
		{"critical latency", Input{HealthScore: 40, PacketLossPct: 2, LatencyMs: 201}, PreferLowLatencyPath},
		{"critical other", Input{HealthScore: 59, PacketLossPct: 1, LatencyMs: 200}, ReduceNonBusiness},
		{"degraded lower bound", Input{HealthScore: 60, PacketLossPct: 9}, Observe},
		{"degraded upper bound", Input{HealthScore: 79, MLAnomaly: true}, MonitorClosely},
		{"healthy lower bound", Input{HealthScore: 80, MLAnomaly: true, PacketLossPct: 9}, NoAction},
	}

	for _, tt := range tests {
		if got := Recommend(tt.in); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestRecommend_LossCheckedBeforeLatency(t *testing.T) {
	in := Input{HealthScore: 10, PacketLossPct: 5, LatencyMs: 500}
	if got := Recommend(in); got != ShiftToBroadband {
		t.Errorf("Expected packet loss branch to fire first, got %q", got)
	}
}
