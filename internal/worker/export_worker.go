package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/core"
	applog "rewards/internal/log"
)

// ReportExporter writes one snapshot to an external destination.
type ReportExporter interface {
	ExportReport(ctx context.Context, s core.Snapshot) error
}

// ExportWorker handles report.generated events. Events older than the last
// exported report are skipped, so redeliveries and reordering never roll the
// sheet back.
type ExportWorker struct {
	exporter ReportExporter
	logger   *applog.Logger

	mu       sync.Mutex
	lastAt   time.Time
	lastGen  uint64
	exported int
}

func NewExportWorker(exporter ReportExporter, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportWorker{
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleReportMessage implements amqp.ReportHandler.
func (w *ExportWorker) HandleReportMessage(ctx context.Context, msg *amqp.ReportGeneratedMessage) error {
	snap := msg.Snapshot()

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastAt.IsZero() && snap.GeneratedAt.Before(w.lastAt) {
		w.logger.InfoContext(ctx, "Skipping outdated report event",
			applog.FieldGeneration, snap.Generation,
			"generated_at", snap.GeneratedAt,
			"last_exported_at", w.lastAt,
			"last_exported_generation", w.lastGen)
		return nil
	}

	if err := w.exporter.ExportReport(ctx, snap); err != nil {
		w.logger.LogError(ctx, "Report export failed", err, applog.OpExport,
			applog.NewFields().WithGeneration(snap.Generation))
		return fmt.Errorf("export report %d: %w", snap.Generation, err)
	}
	w.lastAt, w.lastGen = snap.GeneratedAt, snap.Generation
	w.exported++
	return nil
}

// Exported returns how many reports were written so far.
func (w *ExportWorker) Exported() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exported
}
