// Package rootcause определяет наиболее вероятную причину состояния точки доступа
// по упорядоченной таблице правил (предикат, причина, уверенность)
package rootcause

import "netpulse/internal/models"

// Причины из закрытого набора
const (
	CauseWANPacketLoss    = "WAN Packet Loss"
	CauseWANCongestion    = "WAN Congestion"
	CauseLinkSaturation   = "Link Saturation"
	CauseAbnormalBehavior = "Abnormal Network Behavior"
	CauseNormal           = "Normal Operation"
)

// NormalConfidence уверенность, когда ни одно правило не сработало
const NormalConfidence = 0.95

// Input данные строки, нужные правилам
type Input struct {
	Snapshot    models.MetricSnapshot
	MLAnomaly   bool
	HealthScore int
}

// Cause причина и уверенность в [0,1]
type Cause struct {
	Label      string  `json:"root_cause"`
	Confidence float64 `json:"root_cause_confidence"`
}

// Rule одно правило таблицы
type Rule struct {
	Label      string
	Confidence float64
	Match      func(Input) bool
}

// DefaultRules порядок строк задает приоритет при равной уверенности
var DefaultRules = []Rule{
	{
		Label:      CauseWANPacketLoss,
		Confidence: 0.80,
		Match:      func(in Input) bool { return in.Snapshot.PacketLossPct > 2 },
	},
	{
		Label:      CauseWANCongestion,
		Confidence: 0.85,
		Match: func(in Input) bool {
			return in.Snapshot.LatencyMs > 200 && in.Snapshot.JitterMs > 50
		},
	},
	{
		Label:      CauseLinkSaturation,
		Confidence: 0.75,
		Match:      func(in Input) bool { return in.Snapshot.ThroughputMbps < 20 },
	},
	{
		Label:      CauseAbnormalBehavior,
		Confidence: 0.70,
		Match:      func(in Input) bool { return in.MLAnomaly && in.HealthScore < 60 },
	},
}

// Matches все сработавшие правила в порядке таблицы
func Matches(rules []Rule, in Input) []Cause {
	var matched []Cause
	for _, r := range rules {
		if r.Match(in) {
			matched = append(matched, Cause{Label: r.Label, Confidence: r.Confidence})
		}
	}
	return matched
}

// Select выбирает сработавшее правило с наибольшей уверенностью; при равенстве
// побеждает правило, стоящее в таблице раньше
func Select(rules []Rule, in Input) Cause {
	best := Cause{Label: CauseNormal, Confidence: NormalConfidence}
	found := false
	for _, c := range Matches(rules, in) {
		if !found || c.Confidence > best.Confidence {
			best = c
			found = true
		}
	}
	return best
}

// Infer применяет DefaultRules
func Infer(in Input) Cause {
	return Select(DefaultRules, in)
}
