package stats

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

type Sample struct {
	Elapsed      time.Duration
	HeapAlloc    uint64
	RSS          uint64
	CPUPercent   float64
	NumGoroutine int
}

type Report struct {
	Elapsed        time.Duration
	Samples        int
	PeakHeapAlloc  uint64
	PeakRSS        uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
	GCCycles       uint32
}

// Collector samples the resource usage of the current process until stopped.
type Collector struct {
	interval time.Duration
	proc     *process.Process

	mu      sync.Mutex
	start   time.Time
	samples []Sample
	gcStart uint32
	gcEnd   uint32

	stop chan struct{}
	done chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}
	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.mu.Lock()
	c.start = time.Now()
	c.gcStart = mem.NumGC
	c.mu.Unlock()

	go c.collect()
}

func (c *Collector) collect() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Elapsed:      time.Since(c.start),
		HeapAlloc:    mem.HeapAlloc,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.RSS = info.RSS
	}
	if cpu, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}

	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.gcEnd = mem.NumGC
	c.mu.Unlock()
}

// Stop ends sampling and summarizes what was collected.
func (c *Collector) Stop() Report {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		Elapsed:  time.Since(c.start),
		Samples:  len(c.samples),
		GCCycles: c.gcEnd - c.gcStart,
	}
	var totalCPU float64
	for _, s := range c.samples {
		r.PeakHeapAlloc = max(r.PeakHeapAlloc, s.HeapAlloc)
		r.PeakRSS = max(r.PeakRSS, s.RSS)
		r.PeakCPUPercent = max(r.PeakCPUPercent, s.CPUPercent)
		r.PeakGoroutines = max(r.PeakGoroutines, s.NumGoroutine)
		totalCPU += s.CPUPercent
	}
	if r.Samples > 0 {
		r.AvgCPUPercent = totalCPU / float64(r.Samples)
	}
	return r
}

func (r Report) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"runtime: %s elapsed, %d samples, peak heap %s, peak rss %s, cpu peak %.1f%% avg %.1f%%, peak goroutines %d, %d gc cycles\n",
		r.Elapsed.Round(time.Millisecond),
		r.Samples,
		humanize.Bytes(r.PeakHeapAlloc),
		humanize.Bytes(r.PeakRSS),
		r.PeakCPUPercent,
		r.AvgCPUPercent,
		r.PeakGoroutines,
		r.GCCycles,
	)
	return int64(n), err
}
