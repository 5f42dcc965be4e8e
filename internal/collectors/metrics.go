// Package collectors samples host and process load for the health report, so
// a viewer can tell a slow stream caused by a busy host from a slow network.
package collectors

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics is one sample. Rates are averaged since the previous sample and
// are zero on the first one.
type Metrics struct {
	CPUPercent    float64 `json:"cpuPercent"`
	RAMPercent    float64 `json:"ramPercent"`
	ProcessCPU    float64 `json:"processCpuPercent"`
	ProcessRSSMB  uint64  `json:"processRssMb"`
	Threads       int     `json:"threads,omitempty"`
	NetSentPerSec uint64  `json:"netSentBytesPerSec"`
	NetRecvPerSec uint64  `json:"netRecvBytesPerSec"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
}

// MetricsCollector keeps the state needed for rate calculations.
type MetricsCollector struct {
	mu       sync.Mutex
	proc     *process.Process
	started  time.Time
	lastAt   time.Time
	lastSent uint64
	lastRecv uint64
}

func NewMetricsCollector() *MetricsCollector {
	c := &MetricsCollector{started: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = p
	}
	return c
}

// Collect takes a sample. Sources that fail are left at zero.
func (c *MetricsCollector) Collect() *Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	m := &Metrics{UptimeSeconds: int64(now.Sub(c.started).Seconds())}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		m.RAMPercent = vmem.UsedPercent
	}

	if c.proc != nil {
		if pct, err := c.proc.CPUPercent(); err == nil {
			m.ProcessCPU = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			m.ProcessRSSMB = info.RSS / 1024 / 1024
		}
		if n, err := c.proc.NumThreads(); err == nil {
			m.Threads = int(n)
		}
	}

	if io, err := net.IOCounters(false); err == nil && len(io) > 0 {
		m.NetSentPerSec, m.NetRecvPerSec = c.rates(now, io[0].BytesSent, io[0].BytesRecv)
	}
	return m
}

// rates converts cumulative counters to per-second rates since the last call.
// A counter that went backwards (interface reset) yields zero.
func (c *MetricsCollector) rates(now time.Time, sent, recv uint64) (uint64, uint64) {
	defer func() {
		c.lastAt, c.lastSent, c.lastRecv = now, sent, recv
	}()
	if c.lastAt.IsZero() {
		return 0, 0
	}
	secs := now.Sub(c.lastAt).Seconds()
	if secs <= 0 {
		return 0, 0
	}
	return perSecond(c.lastSent, sent, secs), perSecond(c.lastRecv, recv, secs)
}

func perSecond(prev, cur uint64, secs float64) uint64 {
	if cur < prev {
		return 0
	}
	return uint64(float64(cur-prev) / secs)
}
