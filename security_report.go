package medconfirm

import "github.com/MrEthical07/medconfirm/internal/security"

// SecurityReport summarizes the confirmation posture of the active config.
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return security.BuildReport(security.ReportInput{
		ProductionMode:    e.config.ProductionMode,
		AllowedOrigins:    e.config.Confirmation.AllowedOrigins,
		MaxAttempts:       e.config.Attempts.MaxAttempts,
		AttemptWindow:     e.config.Attempts.Window,
		ExchangeTimeout:   e.config.Confirmation.ExchangeTimeout,
		MinTokenLength:    e.config.Confirmation.MinTokenLength,
		MaxTokenLength:    e.config.Confirmation.MaxTokenLength,
		DeepLink:          e.config.Confirmation.DeepLink,
		RedirectDelay:     e.config.Confirmation.RedirectDelay,
		AuditEnabled:      e.config.Audit.Enabled,
		AuditDropIfFull:   e.config.Audit.DropIfFull,
		MetricsEnabled:    e.config.Metrics.Enabled,
		LatencyHistograms: e.config.Metrics.EnableLatencyHistograms,
	})
}
