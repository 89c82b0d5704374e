package metrics

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("alert-evaluator", nil)

	c.RecordReceived()
	c.RecordReceived()
	c.RecordProcessed(10 * time.Millisecond)
	c.RecordProcessed(30 * time.Millisecond)
	c.RecordPublished()
	c.RecordError()
	c.IncrementCustom("triggered")
	c.IncrementCustom("triggered")

	snap := c.GetSnapshot()
	if snap.ServiceName != "alert-evaluator" {
		t.Errorf("ServiceName = %q", snap.ServiceName)
	}
	if snap.Received != 2 || snap.Processed != 2 || snap.Published != 1 || snap.Errors != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.AvgProcessingLatencyNs != float64(20*time.Millisecond) {
		t.Errorf("AvgProcessingLatencyNs = %v, want %v", snap.AvgProcessingLatencyNs, float64(20*time.Millisecond))
	}
	if snap.CustomCounters["triggered"] != 2 {
		t.Errorf("custom counter = %d, want 2", snap.CustomCounters["triggered"])
	}
	if snap.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", snap.Status)
	}
}

func TestCollector_IncrementCustomConcurrent(t *testing.T) {
	c := NewCollector("alert-api", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncrementCustom("http_GET")
		}()
	}
	wg.Wait()

	if got := c.GetSnapshot().CustomCounters["http_GET"]; got != 50 {
		t.Errorf("custom counter = %d, want 50", got)
	}
}

func TestCollector_StartStopWithoutRedis(t *testing.T) {
	c := NewCollector("alert-api", nil)
	c.SetReportInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	c.Stop()
	c.Stop() // second Stop must not panic
}

func TestCollector_SetReportIntervalIgnoresNonPositive(t *testing.T) {
	c := NewCollector("alert-api", nil)
	c.SetReportInterval(0)
	if c.reportInterval != DefaultReportInterval {
		t.Errorf("reportInterval = %v, want %v", c.reportInterval, DefaultReportInterval)
	}
}
