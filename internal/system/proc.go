// Package system reads host resource counters from /proc.
package system

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MemoryInfo reports physical memory usage in bytes.
type MemoryInfo struct {
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

// UsedMB returns used memory in megabytes.
func (m MemoryInfo) UsedMB() float64 {
	return float64(m.UsedBytes) / (1024 * 1024)
}

// ReadMemoryInfo parses /proc/meminfo. Used = MemTotal - MemAvailable.
func ReadMemoryInfo() (MemoryInfo, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("open /proc/meminfo: %w", err)
	}
	defer f.Close()

	vals := map[string]uint64{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSuffix(parts[0], ":")
		v, convErr := strconv.ParseUint(parts[1], 10, 64)
		if convErr != nil {
			continue
		}
		vals[key] = v * 1024
	}
	if err := s.Err(); err != nil {
		return MemoryInfo{}, fmt.Errorf("scan /proc/meminfo: %w", err)
	}

	total := vals["MemTotal"]
	avail := vals["MemAvailable"]
	if total == 0 {
		return MemoryInfo{}, fmt.Errorf("MemTotal missing from /proc/meminfo")
	}
	return MemoryInfo{TotalBytes: total, UsedBytes: total - avail, FreeBytes: avail}, nil
}

// TaskCounts reports process and thread totals across the host.
type TaskCounts struct {
	Processes int
	Threads   int
}

// ReadTaskCounts walks /proc counting PID directories and summing the
// Threads line of each /proc/<pid>/status. Processes that exit mid-walk
// are skipped.
func ReadTaskCounts() (TaskCounts, error) {
	dirents, err := os.ReadDir("/proc")
	if err != nil {
		return TaskCounts{}, fmt.Errorf("read /proc: %w", err)
	}

	var counts TaskCounts
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		pid := d.Name()
		if pid[0] < '0' || pid[0] > '9' {
			continue
		}
		counts.Processes++
		counts.Threads += readThreadCount(pid)
	}
	return counts, nil
}

func readThreadCount(pid string) int {
	data, err := os.ReadFile("/proc/" + pid + "/status")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "Threads:") {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Threads:")))
		if convErr != nil {
			return 0
		}
		return n
	}
	return 0
}
