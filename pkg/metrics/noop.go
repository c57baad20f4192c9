package metrics

import "TradePulse/internal/domain/models"

// Noop satisfies domain.repository.Metrics and records nothing.
type Noop struct{}

func (Noop) RecordIngested(string) {}
func (Noop) RecordMalformed(string) {}
func (Noop) RecordLate(string) {}
func (Noop) RecordMailboxDrop(string) {}
func (Noop) RecordRejected(string) {}
func (Noop) RecordSnapshot(string) {}
func (Noop) RecordAlert(string, models.AlertType) {}
func (Noop) RecordSinkWrite(string) {}
func (Noop) RecordSinkRetry(string) {}
func (Noop) RecordSinkFailure(string) {}
func (Noop) RecordSinkDrop(string) {}
func (Noop) RecordSinkDegraded(string) {}
func (Noop) RecordWorkerRestart(string) {}
func (Noop) RecordActiveSymbols(int) {}
func (Noop) RecordLastPrice(string, float64) {}
func (Noop) RecordError(string) {}
func (Noop) RecordLatency(string, float64) {}
