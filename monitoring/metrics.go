// Package monitoring 收集预测服务的运行指标
package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Outcome 单次预测的结果分类
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeError    Outcome = "error"
)

// PredictionMetrics 预测指标
type PredictionMetrics struct {
	metricsLock sync.RWMutex

	startTime    time.Time
	requests     map[string]int64
	outcomes     map[Outcome]int64
	levels       map[string]int64
	predictions  int64
	aqiSum       float64
	latencySum   time.Duration
	latencyMax   time.Duration
	latencyCount int64
}

// Snapshot 指标快照
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Requests      map[string]int64   `json:"requests"`
	Outcomes      map[Outcome]int64  `json:"outcomes"`
	Levels        map[string]int64   `json:"levels"`
	Predictions   int64              `json:"predictions"`
	MeanAQI       float64            `json:"mean_aqi"`
	Latency       LatencyStats       `json:"latency"`
	System        map[string]float64 `json:"system"`
}

// LatencyStats 请求耗时统计
type LatencyStats struct {
	Count       int64   `json:"count"`
	MeanSeconds float64 `json:"mean_seconds"`
	MaxSeconds  float64 `json:"max_seconds"`
}

// NewPredictionMetrics 创建预测指标
func NewPredictionMetrics() *PredictionMetrics {
	return &PredictionMetrics{
		startTime: time.Now(),
		requests:  make(map[string]int64),
		outcomes:  make(map[Outcome]int64),
		levels:    make(map[string]int64),
	}
}

// RecordRequest 记录一次预测请求及其耗时
func (pm *PredictionMetrics) RecordRequest(endpoint string, outcome Outcome, duration time.Duration) {
	pm.metricsLock.Lock()
	defer pm.metricsLock.Unlock()

	pm.requests[endpoint]++
	pm.outcomes[outcome]++
	pm.latencyCount++
	pm.latencySum += duration
	if duration > pm.latencyMax {
		pm.latencyMax = duration
	}
}

// RecordPrediction 记录一个预测值及其等级
func (pm *PredictionMetrics) RecordPrediction(level string, aqi float64) {
	pm.metricsLock.Lock()
	defer pm.metricsLock.Unlock()

	pm.predictions++
	pm.aqiSum += aqi
	pm.levels[level]++
}

// Snapshot 返回当前指标的副本
func (pm *PredictionMetrics) Snapshot() Snapshot {
	pm.metricsLock.RLock()
	defer pm.metricsLock.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(pm.startTime).Seconds(),
		Requests:      make(map[string]int64, len(pm.requests)),
		Outcomes:      make(map[Outcome]int64, len(pm.outcomes)),
		Levels:        make(map[string]int64, len(pm.levels)),
		Predictions:   pm.predictions,
		Latency: LatencyStats{
			Count:      pm.latencyCount,
			MaxSeconds: pm.latencyMax.Seconds(),
		},
		System: systemStats(),
	}
	for k, v := range pm.requests {
		snap.Requests[k] = v
	}
	for k, v := range pm.outcomes {
		snap.Outcomes[k] = v
	}
	for k, v := range pm.levels {
		snap.Levels[k] = v
	}
	if pm.predictions > 0 {
		snap.MeanAQI = pm.aqiSum / float64(pm.predictions)
	}
	if pm.latencyCount > 0 {
		snap.Latency.MeanSeconds = pm.latencySum.Seconds() / float64(pm.latencyCount)
	}
	return snap
}

// ExportPrometheus 导出Prometheus文本格式
func (pm *PredictionMetrics) ExportPrometheus() string {
	snap := pm.Snapshot()
	var b strings.Builder

	writeHeader := func(name, kind, help string) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	}

	writeHeader("aqi_requests_total", "counter", "Prediction requests by endpoint")
	for _, k := range sortedKeys(snap.Requests) {
		fmt.Fprintf(&b, "aqi_requests_total{endpoint=%q} %d\n", k, snap.Requests[k])
	}

	writeHeader("aqi_outcomes_total", "counter", "Prediction requests by outcome")
	outcomes := make(map[string]int64, len(snap.Outcomes))
	for k, v := range snap.Outcomes {
		outcomes[string(k)] = v
	}
	for _, k := range sortedKeys(outcomes) {
		fmt.Fprintf(&b, "aqi_outcomes_total{outcome=%q} %d\n", k, outcomes[k])
	}

	writeHeader("aqi_predictions_total", "counter", "Predictions by AQI level")
	for _, k := range sortedKeys(snap.Levels) {
		fmt.Fprintf(&b, "aqi_predictions_total{level=%q} %d\n", k, snap.Levels[k])
	}

	writeHeader("aqi_request_duration_seconds_max", "gauge", "Slowest prediction request")
	fmt.Fprintf(&b, "aqi_request_duration_seconds_max %f\n", snap.Latency.MaxSeconds)

	writeHeader("aqi_uptime_seconds", "gauge", "Seconds since the service started")
	fmt.Fprintf(&b, "aqi_uptime_seconds %f\n", snap.UptimeSeconds)

	return b.String()
}

// systemStats 获取系统统计
func systemStats() map[string]float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]float64{
		"goroutines": float64(runtime.NumGoroutine()),
		"heap_alloc": float64(m.HeapAlloc),
		"heap_sys":   float64(m.HeapSys),
		"gc_count":   float64(m.NumGC),
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
