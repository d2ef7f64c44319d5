package async

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/autoblog/errors"
)

// SystemMetrics is a snapshot of pool activity and host memory
type SystemMetrics struct {
	WorkersActive int     `json:"workers_active"`  // workers currently executing a task
	WorkersTotal  int     `json:"workers_total"`   // configured workers
	TasksQueued   int     `json:"tasks_queued"`    // tasks waiting in the queue
	TasksExecuted int     `json:"tasks_executed"`  // tasks run since start
	MemoryUsedGB  float64 `json:"memory_used_gb"`  // current memory usage in GB
	MemoryTotalGB float64 `json:"memory_total_gb"` // total system memory in GB
	MemoryPercent float64 `json:"memory_percent"`  // memory utilization percentage
}

// getMemoryStats returns total and available memory in bytes
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// memoryGB converts a gopsutil reading into GB figures. Zero total yields zeros.
func memoryGB(total, available uint64) (usedGB, totalGB, percent float64) {
	if total == 0 || available > total {
		return 0, 0, 0
	}
	totalGB = float64(total) / 1024 / 1024 / 1024
	usedGB = float64(total-available) / 1024 / 1024 / 1024
	return usedGB, totalGB, (usedGB / totalGB) * 100
}

// GetSystemMetrics returns current pool activity and host memory usage.
// Memory figures are zero when the host cannot report them.
func (wp *WorkerPool) GetSystemMetrics() SystemMetrics {
	m := SystemMetrics{
		WorkersTotal: wp.config.Workers,
		TasksQueued:  wp.Pending(),
	}
	if total, available, err := getMemoryStats(); err == nil {
		m.MemoryUsedGB, m.MemoryTotalGB, m.MemoryPercent = memoryGB(total, available)
	}

	wp.mu.Lock()
	m.WorkersActive = wp.active
	m.TasksExecuted = wp.executed
	wp.mu.Unlock()
	return m
}
