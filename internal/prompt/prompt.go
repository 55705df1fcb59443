// Package prompt формирует текстовую сводку инцидента для языковой модели.
// Только форматирование: результат не влияет на решения конвейера
package prompt

import (
	"strings"
	"text/template"
)

// Input поля строки, попадающие в сводку
type Input struct {
	Device         string
	HealthScore    int
	MLAnomaly      bool
	RootCause      string
	Confidence     float64
	Recommendation string
}

var incidentTemplate = template.Must(template.New("incident").Funcs(template.FuncMap{
	"flag": func(v bool) int {
		if v {
			return 1
		}
		return 0
	},
}).Parse(`
You are a Network Operations Copilot.

Incident Summary:
- Device: {{.Device}}
- Health Score: {{.HealthScore}}
- Anomaly Detected: {{flag .MLAnomaly}}
- Root Cause: {{.RootCause}} (confidence {{.Confidence}})
- Recommended Action: {{.Recommendation}}

Explain the issue clearly and suggest next steps.
`))

// Build возвращает текст сводки
func Build(in Input) (string, error) {
	var sb strings.Builder
	if err := incidentTemplate.Execute(&sb, in); err != nil {
		return "", err
	}
	return sb.String(), nil
}
