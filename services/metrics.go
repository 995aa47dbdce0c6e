package services

import (
	"context"
	"time"
)

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }
func (noopMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}
func (noopMetrics) IsEnabled() bool { return false }
