package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"netpulse/internal/analytics"
	"netpulse/internal/health"
	"netpulse/internal/metrics"
	"netpulse/internal/models"
	"netpulse/internal/prompt"
	"netpulse/internal/recommend"
	"netpulse/internal/rootcause"
	"netpulse/internal/table"
)

// Значения для отсутствующих колонок вышестоящих этапов, когда этап запущен отдельно.
// health_score = 0 относит строку к Critical: отсутствие оценки не выдается за здоровье
const (
	DefaultMLAnomaly   = false
	DefaultHealthScore = 0
)

// ErrIncompleteUpstream колонка вышестоящего этапа есть, но часть ячеек пуста:
// строки дописаны после прогона этого этапа
var ErrIncompleteUpstream = errors.New("upstream column incomplete")

// Report итог прогона
type Report struct {
	RunID       string        `json:"run_id"`
	Rows        int           `json:"rows"`
	Stages      []Stage       `json:"stages"`
	Statistical int           `json:"statistical_anomalies"`
	Behavioral  int           `json:"behavioral_anomalies"`
	Anomalies   int           `json:"anomalies"`
	Critical    int           `json:"critical"`
	Degraded    int           `json:"degraded"`
	Healthy     int           `json:"healthy"`
	Defaulted   []string      `json:"defaulted_columns,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// state значения, вычисленные в текущем прогоне; nil означает, что этап не запускался
type state struct {
	snaps     []models.MetricSnapshot
	mlAnomaly []bool
	scores    []int
	causes    []rootcause.Cause
	recs      []string
	columns   []table.Column
	defaulted []string
	report    *Report
	logger    *zap.Logger
	tbl       *table.Table
	detector  *analytics.Detector
}

// Enrich вычисляет колонки запрошенных этапов в памяти и применяет их к таблице
// целиком. При ошибке любого этапа таблица не меняется
func Enrich(tbl *table.Table, detector *analytics.Detector, logger *zap.Logger, stages ...Stage) (Report, error) {
	ordered, err := Order(stages)
	if err != nil {
		return Report{}, err
	}

	report := Report{Rows: tbl.Len(), Stages: ordered}
	if len(tbl.Header()) == 0 {
		logger.Info("Table is empty, nothing to enrich")
		return report, nil
	}

	snaps, err := tbl.Snapshots()
	if err != nil {
		return report, err
	}

	st := &state{
		snaps:    snaps,
		report:   &report,
		logger:   logger,
		tbl:      tbl,
		detector: detector,
	}

	for _, stage := range ordered {
		start := time.Now()
		if err := st.run(stage); err != nil {
			return report, fmt.Errorf("stage %s: %w", stage, err)
		}
		elapsed := time.Since(start)
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
		metrics.RowsEnriched.WithLabelValues(string(stage)).Add(float64(len(snaps)))
		logger.Info("Stage completed",
			zap.String("stage", string(stage)),
			zap.Int("rows", len(snaps)),
			zap.Duration("duration", elapsed),
		)
	}

	if err := tbl.Apply(st.columns...); err != nil {
		return report, err
	}
	report.Defaulted = st.defaulted
	return report, nil
}

func (st *state) run(stage Stage) error {
	switch stage {
	case StageAnomaly:
		return st.anomaly()
	case StageHealth:
		return st.health()
	case StageRootCause:
		return st.rootCause()
	case StageRecommend:
		return st.recommend()
	case StagePrompts:
		return st.prompts()
	}
	return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
}

func (st *state) anomaly() error {
	results, err := st.detector.Detect(st.snaps)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidSnapshot) {
			return fmt.Errorf("%w: %v", table.ErrInvalidRow, err)
		}
		return err
	}

	n := len(results)
	score, ml, behavioral := make([]string, n), make([]string, n), make([]string, n)
	statistical, latency, jitter := make([]string, n), make([]string, n), make([]string, n)
	st.mlAnomaly = make([]bool, n)
	for i, r := range results {
		score[i] = table.FormatFloat(r.Score)
		ml[i] = table.FormatBool(r.Anomaly)
		behavioral[i] = table.FormatBool(r.Behavioral)
		statistical[i] = table.FormatBool(r.Statistical)
		latency[i] = table.FormatFloat(r.LatencyDelta)
		jitter[i] = table.FormatFloat(r.JitterDelta)
		st.mlAnomaly[i] = r.Anomaly
	}
	st.columns = append(st.columns,
		table.Column{Name: models.ColMLScore, Values: score},
		table.Column{Name: models.ColMLAnomaly, Values: ml},
		table.Column{Name: models.ColBehavioralAnomaly, Values: behavioral},
		table.Column{Name: models.ColStatisticalAnomaly, Values: statistical},
		table.Column{Name: models.ColLatencyDelta, Values: latency},
		table.Column{Name: models.ColJitterDelta, Values: jitter},
	)

	s, b, c := analytics.Counts(results)
	st.report.Statistical, st.report.Behavioral, st.report.Anomalies = s, b, c
	metrics.UpdateAnomalyMetrics(s, b, c)
	st.logger.Info("Anomaly detection finished",
		zap.Int("statistical", s),
		zap.Int("behavioral", b),
		zap.Int("combined", c),
		zap.Float64("contamination", st.detector.Config().Contamination),
	)
	return nil
}

func (st *state) health() error {
	anomalies, err := st.upstreamAnomalies()
	if err != nil {
		return err
	}

	n := len(st.snaps)
	scores, statuses := make([]string, n), make([]string, n)
	st.scores = make([]int, n)
	var critical, degraded, healthy int
	for i, s := range st.snaps {
		res := health.Score(s, anomalies[i])
		st.scores[i] = res.Score
		scores[i] = strconv.Itoa(res.Score)
		statuses[i] = string(res.Status)
		switch res.Status {
		case models.StatusCritical:
			critical++
		case models.StatusDegraded:
			degraded++
		default:
			healthy++
		}
	}
	st.columns = append(st.columns,
		table.Column{Name: models.ColHealthScore, Values: scores},
		table.Column{Name: models.ColHealthStatus, Values: statuses},
	)

	st.report.Critical, st.report.Degraded, st.report.Healthy = critical, degraded, healthy
	metrics.UpdateHealthMetrics(critical, degraded, healthy)
	return nil
}

func (st *state) rootCause() error {
	anomalies, err := st.upstreamAnomalies()
	if err != nil {
		return err
	}
	scores, err := st.upstreamScores()
	if err != nil {
		return err
	}

	n := len(st.snaps)
	labels, confidence := make([]string, n), make([]string, n)
	st.causes = make([]rootcause.Cause, n)
	for i, s := range st.snaps {
		c := rootcause.Infer(rootcause.Input{Snapshot: s, MLAnomaly: anomalies[i], HealthScore: scores[i]})
		st.causes[i] = c
		labels[i] = c.Label
		confidence[i] = table.FormatFloat(c.Confidence)
	}
	st.columns = append(st.columns,
		table.Column{Name: models.ColRootCause, Values: labels},
		table.Column{Name: models.ColRootCauseConfidence, Values: confidence},
	)
	return nil
}

func (st *state) recommend() error {
	anomalies, err := st.upstreamAnomalies()
	if err != nil {
		return err
	}
	scores, err := st.upstreamScores()
	if err != nil {
		return err
	}

	st.recs = make([]string, len(st.snaps))
	for i, s := range st.snaps {
		st.recs[i] = recommend.Recommend(recommend.Input{
			HealthScore:   scores[i],
			PacketLossPct: s.PacketLossPct,
			LatencyMs:     s.LatencyMs,
			MLAnomaly:     anomalies[i],
		})
	}
	st.columns = append(st.columns, table.Column{Name: models.ColRecommendation, Values: st.recs})
	return nil
}

func (st *state) prompts() error {
	anomalies, err := st.upstreamAnomalies()
	if err != nil {
		return err
	}
	scores, err := st.upstreamScores()
	if err != nil {
		return err
	}
	causes, err := st.upstreamCauses()
	if err != nil {
		return err
	}
	recs := st.recs
	if recs == nil {
		if recs, err = st.upstreamStrings(models.ColRecommendation, StageRecommend); err != nil {
			return err
		}
	}

	out := make([]string, len(st.snaps))
	for i, s := range st.snaps {
		text, err := prompt.Build(prompt.Input{
			Device:         s.Device,
			HealthScore:    scores[i],
			MLAnomaly:      anomalies[i],
			RootCause:      causes[i].Label,
			Confidence:     causes[i].Confidence,
			Recommendation: recs[i],
		})
		if err != nil {
			return err
		}
		out[i] = text
	}
	st.columns = append(st.columns, table.Column{Name: models.ColPrompt, Values: out})
	return nil
}

// upstreamAnomalies ml_anomaly из этого прогона или из таблицы с явным значением по умолчанию.
// Пустые ячейки дописанных строк тоже получают значение по умолчанию
func (st *state) upstreamAnomalies() ([]bool, error) {
	if st.mlAnomaly != nil {
		return st.mlAnomaly, nil
	}
	values, present, err := st.tbl.Bools(models.ColMLAnomaly, DefaultMLAnomaly)
	if err != nil {
		return nil, err
	}
	if !present {
		st.warnDefault(models.ColMLAnomaly, DefaultMLAnomaly)
	} else if blank := st.tbl.Blank(models.ColMLAnomaly); len(blank) > 0 {
		st.warnBlank(models.ColMLAnomaly, DefaultMLAnomaly, blank)
	}
	st.mlAnomaly = values
	return values, nil
}

// upstreamScores health_score из этого прогона или из таблицы. Пустая ячейка в
// существующей колонке это ошибка: оценка 0 дала бы строке ложный Critical
func (st *state) upstreamScores() ([]int, error) {
	if st.scores != nil {
		return st.scores, nil
	}
	if err := st.complete(models.ColHealthScore, StageHealth); err != nil {
		return nil, err
	}
	values, present, err := st.tbl.Ints(models.ColHealthScore, DefaultHealthScore)
	if err != nil {
		return nil, err
	}
	if !present {
		st.warnDefault(models.ColHealthScore, DefaultHealthScore)
	}
	st.scores = values
	return values, nil
}

func (st *state) upstreamCauses() ([]rootcause.Cause, error) {
	if st.causes != nil {
		return st.causes, nil
	}
	labels, err := st.upstreamStrings(models.ColRootCause, StageRootCause)
	if err != nil {
		return nil, err
	}
	confidence, _, err := st.tbl.Floats(models.ColRootCauseConfidence, 0)
	if err != nil {
		return nil, err
	}
	causes := make([]rootcause.Cause, len(labels))
	for i := range labels {
		causes[i] = rootcause.Cause{Label: labels[i], Confidence: confidence[i]}
	}
	st.causes = causes
	return causes, nil
}

func (st *state) upstreamStrings(name string, producer Stage) ([]string, error) {
	if err := st.complete(name, producer); err != nil {
		return nil, err
	}
	values, ok := st.tbl.Column(name)
	if !ok {
		st.warnDefault(name, "")
		values = make([]string, st.tbl.Len())
	}
	return values, nil
}

// complete проверяет, что у существующей колонки нет пустых ячеек
func (st *state) complete(name string, producer Stage) error {
	blank := st.tbl.Blank(name)
	if len(blank) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s is empty on %d of %d rows (first at line %d), run the %s stage",
		ErrIncompleteUpstream, name, len(blank), st.tbl.Len(), blank[0]+2, producer)
}

func (st *state) warnDefault(column string, value interface{}) {
	st.defaulted = append(st.defaulted, column)
	st.logger.Warn("Upstream column missing, using default",
		zap.String("column", column),
		zap.Any("default", value),
	)
}

func (st *state) warnBlank(column string, value interface{}, rows []int) {
	st.defaulted = append(st.defaulted, column)
	st.logger.Warn("Upstream cells empty, using default",
		zap.String("column", column),
		zap.Any("default", value),
		zap.Int("rows", len(rows)),
		zap.Int("first_line", rows[0]+2),
	)
}
