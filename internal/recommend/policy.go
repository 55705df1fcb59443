// Package recommend выбирает рекомендацию по снижению влияния.
// Рекомендации носят справочный характер и никогда не исполняются
package recommend

import "netpulse/internal/health"

// Рекомендации из закрытого набора
const (
	ShiftToBroadband     = "Shift critical traffic to Broadband"
	PreferLowLatencyPath = "Prefer low-latency path (MPLS/Direct)"
	ReduceNonBusiness    = "Reduce non-business traffic"
	MonitorClosely       = "Monitor closely – anomaly detected"
	Observe              = "No immediate action – observe"
	NoAction             = "No action required"
)

// Input данные строки, нужные политике
type Input struct {
	HealthScore   int
	PacketLossPct float64
	LatencyMs     float64
	MLAnomaly     bool
}

// Recommend дерево решений: сначала полоса здоровья, внутри Critical потеря пакетов
// проверяется раньше задержки
func Recommend(in Input) string {
	switch {
	case in.HealthScore < health.CriticalBelow:
		switch {
		case in.PacketLossPct > 2:
			return ShiftToBroadband
		case in.LatencyMs > 200:
			return PreferLowLatencyPath
		default:
			return ReduceNonBusiness
		}
	case in.HealthScore < health.HealthyFrom:
		if in.MLAnomaly {
			return MonitorClosely
		}
		return Observe
	default:
		return NoAction
	}
}
