package gateway

import (
	"strings"

	"go.uber.org/zap"
)

// logEvent emits one structured record per adapter call for forensic
// reconciliation: event, status, data, error, timestamp (zap adds ts).
func logEvent(provider Name, event string, status Status, err error, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("provider", string(provider)),
		zap.String("event", event),
		zap.String("status", string(status)),
	}, fields...)
	if err != nil {
		all = append(all, zap.Error(err))
		zap.L().Warn("gateway call", all...)
		return
	}
	zap.L().Info("gateway call", all...)
}

// maskAccount redacts a payout destination, keeping the last four digits.
func maskAccount(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
