package security

import (
	"net/url"
	"strings"
	"time"
)

type Report struct {
	ProductionMode    bool
	OriginCount       int
	InsecureOrigins   []string
	LoopbackOrigins   []string
	AttemptCapActive  bool
	MaxAttempts       int
	AttemptWindow     time.Duration
	ExchangeTimeout   time.Duration
	TokenLengthBounds [2]int
	DeepLinkScheme    string
	AuditEnabled      bool
	AuditMayDrop      bool
	MetricsEnabled    bool
	LatencyHistograms bool
	RedirectDelay     time.Duration
	RedirectImmediate bool
}

type ReportInput struct {
	ProductionMode    bool
	AllowedOrigins    []string
	MaxAttempts       int
	AttemptWindow     time.Duration
	ExchangeTimeout   time.Duration
	MinTokenLength    int
	MaxTokenLength    int
	DeepLink          string
	RedirectDelay     time.Duration
	AuditEnabled      bool
	AuditDropIfFull   bool
	MetricsEnabled    bool
	LatencyHistograms bool
}

func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:    input.ProductionMode,
		OriginCount:       len(input.AllowedOrigins),
		AttemptCapActive:  input.MaxAttempts > 0 && input.AttemptWindow > 0,
		MaxAttempts:       input.MaxAttempts,
		AttemptWindow:     input.AttemptWindow,
		ExchangeTimeout:   input.ExchangeTimeout,
		TokenLengthBounds: [2]int{input.MinTokenLength, input.MaxTokenLength},
		AuditEnabled:      input.AuditEnabled,
		AuditMayDrop:      input.AuditEnabled && input.AuditDropIfFull,
		MetricsEnabled:    input.MetricsEnabled,
		LatencyHistograms: input.MetricsEnabled && input.LatencyHistograms,
		RedirectDelay:     input.RedirectDelay,
		RedirectImmediate: input.RedirectDelay == 0,
	}
	if u, err := url.Parse(input.DeepLink); err == nil {
		r.DeepLinkScheme = u.Scheme
	}

	for _, origin := range input.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil {
			r.InsecureOrigins = append(r.InsecureOrigins, origin)
			continue
		}
		if u.Scheme != "https" {
			r.InsecureOrigins = append(r.InsecureOrigins, origin)
		}
		if isLoopback(u.Hostname()) {
			r.LoopbackOrigins = append(r.LoopbackOrigins, origin)
		}
	}
	return r
}

// Warnings lists the report entries an operator should act on.
func (r Report) Warnings() []string {
	var out []string
	if r.ProductionMode && len(r.LoopbackOrigins) > 0 {
		out = append(out, "loopback origins allowed in production: "+strings.Join(r.LoopbackOrigins, ","))
	}
	if r.ProductionMode && len(r.InsecureOrigins) > 0 {
		out = append(out, "non-https origins allowed in production: "+strings.Join(r.InsecureOrigins, ","))
	}
	if !r.AttemptCapActive {
		out = append(out, "attempt cap disabled")
	}
	if r.AuditMayDrop {
		out = append(out, "audit events are dropped when the buffer is full")
	}
	return out
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
