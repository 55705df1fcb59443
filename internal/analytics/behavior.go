package analytics

import (
	"math"
	"sort"

	"netpulse/internal/models"
)

// Delta изменение метрик относительно предыдущего снимка того же устройства
type Delta struct {
	Latency   float64
	Jitter    float64
	Anomalous bool
}

// BehavioralDeltas свертка по устройствам: снимки каждого устройства упорядочиваются
// по времени (при равных метках сохраняется порядок таблицы), затем для каждого
// снимка берется |Δ| к непосредственно предыдущему. Первый снимок устройства
// имеет нулевые дельты. Результат выровнен по индексам snaps
func BehavioralDeltas(snaps []models.MetricSnapshot, latencyThreshold, jitterThreshold float64) []Delta {
	deltas := make([]Delta, len(snaps))

	byDevice := make(map[string][]int)
	var devices []string
	for i, s := range snaps {
		if _, ok := byDevice[s.Device]; !ok {
			devices = append(devices, s.Device)
		}
		byDevice[s.Device] = append(byDevice[s.Device], i)
	}

	for _, device := range devices {
		rows := byDevice[device]
		sort.SliceStable(rows, func(a, b int) bool {
			return snaps[rows[a]].Timestamp.Before(snaps[rows[b]].Timestamp)
		})

		for k := 1; k < len(rows); k++ {
			prev, cur := snaps[rows[k-1]], snaps[rows[k]]
			d := Delta{
				Latency: math.Abs(cur.LatencyMs - prev.LatencyMs),
				Jitter:  math.Abs(cur.JitterMs - prev.JitterMs),
			}
			d.Anomalous = d.Latency > latencyThreshold || d.Jitter > jitterThreshold
			deltas[rows[k]] = d
		}
	}

	return deltas
}
