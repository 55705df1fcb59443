// Package main запускает netpulse: конвейер обогащения телеметрии точек доступа
// Команды:
// - anomaly, health, rootcause, recommend - отдельные этапы над таблицей
// - run - все этапы за один цикл чтения и записи
// - prompts - сводки инцидентов для языковой модели
// - summary, alerts - агрегаты и критичные строки
// - export - копия таблицы в SQLite
// - serve - HTTP API только для чтения и метрики Prometheus
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).execute(ctx, nil); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
