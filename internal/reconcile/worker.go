package reconcile

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

type ReportJobArgs struct{}

func (ReportJobArgs) Kind() string { return "reconciliation_report" }

// InsertOpts makes overlapping periodic runs coalesce instead of queueing up.
func (ReportJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

type ReportWorker struct {
	river.WorkerDefaults[ReportJobArgs]
	svc Service
	log *slog.Logger
}

func NewReportWorker(svc Service, log *slog.Logger) *ReportWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ReportWorker{svc: svc, log: log}
}

func (w *ReportWorker) Work(ctx context.Context, job *river.Job[ReportJobArgs]) error {
	report, err := w.svc.Run(ctx)
	if err != nil {
		return err
	}
	if report.Clean() {
		w.log.Info("reconciliation clean", "checked", report.Checked)
		return nil
	}
	w.log.Warn("reconciliation found discrepancies", "checked", report.Checked, "count", len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		w.log.Warn("ledger discrepancy",
			"type", d.Type,
			"beneficiary_type", d.BeneficiaryType,
			"beneficiary_id", d.BeneficiaryID,
			"expected", d.Expected.String(),
			"actual", d.Actual.String(),
			"delta", d.Delta.String(),
		)
	}
	return nil
}
