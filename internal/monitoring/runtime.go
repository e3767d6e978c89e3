package monitoring

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// RuntimeSampler copies Go heap and GC statistics into Metrics on an
// interval. Image decoding is the main allocator in this service, so heap
// growth is logged when it crosses warnHeapBytes.
type RuntimeSampler struct {
	metrics       *Metrics
	logger        *Logger
	interval      time.Duration
	warnHeapBytes uint64

	stopOnce sync.Once
	stop     chan struct{}
}

func NewRuntimeSampler(metrics *Metrics, logger *Logger, interval time.Duration, warnHeapBytes uint64) *RuntimeSampler {
	return &RuntimeSampler{
		metrics:       metrics,
		logger:        logger,
		interval:      interval,
		warnHeapBytes: warnHeapBytes,
		stop:          make(chan struct{}),
	}
}

// Start samples once immediately and then on every tick until Stop
func (rs *RuntimeSampler) Start() {
	rs.Sample()
	go func() {
		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rs.Sample()
			case <-rs.stop:
				slog.Info("Runtime sampling stopped")
				return
			}
		}
	}()
}

func (rs *RuntimeSampler) Stop() {
	rs.stopOnce.Do(func() { close(rs.stop) })
}

func (rs *RuntimeSampler) Sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rs.metrics.RecordGCMetrics(int64(ms.NumGC), int64(ms.PauseTotalNs), int64(ms.HeapAlloc), int64(ms.HeapSys))

	if rs.warnHeapBytes > 0 && ms.HeapAlloc > rs.warnHeapBytes && rs.logger != nil {
		rs.logger.PerformanceLogger("heap_alloc_bytes", float64(ms.HeapAlloc), "bytes")
	}
}
