package collectors

import (
	"testing"
	"time"
)

func TestRates(t *testing.T) {
	c := NewMetricsCollector()
	t0 := time.Unix(1000, 0)

	if s, r := c.rates(t0, 1000, 5000); s != 0 || r != 0 {
		t.Fatalf("first sample = %d, %d; want 0, 0", s, r)
	}
	if s, r := c.rates(t0.Add(2*time.Second), 3000, 6000); s != 1000 || r != 500 {
		t.Errorf("rates = %d, %d; want 1000, 500", s, r)
	}
	if s, r := c.rates(t0.Add(3*time.Second), 100, 7000); s != 0 || r != 1000 {
		t.Errorf("after counter reset = %d, %d; want 0, 1000", s, r)
	}
	if s, r := c.rates(t0.Add(3*time.Second), 200, 8000); s != 0 || r != 0 {
		t.Errorf("zero interval = %d, %d; want 0, 0", s, r)
	}
}

func TestCollect(t *testing.T) {
	c := NewMetricsCollector()
	m := c.Collect()
	if m == nil {
		t.Fatal("Collect() = nil")
	}
	if m.CPUPercent < 0 || m.CPUPercent > 100 {
		t.Errorf("CPUPercent = %f", m.CPUPercent)
	}
	if m.RAMPercent < 0 || m.RAMPercent > 100 {
		t.Errorf("RAMPercent = %f", m.RAMPercent)
	}
	if m.NetSentPerSec != 0 || m.NetRecvPerSec != 0 {
		t.Errorf("first sample has non-zero rates: %+v", m)
	}
}
