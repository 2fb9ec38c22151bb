// Package pipeline 清洗用于拟合缩放器的历史读数
package pipeline

import (
	"fmt"
	"sync"

	"airquality/ml"
)

// CleaningRule 清洗规则。Apply 返回修正后的读数，返回错误表示丢弃该行
type CleaningRule interface {
	Apply(reading ml.FeatureVector) (ml.FeatureVector, error)
	Name() string
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type    string `json:"type"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules []CleaningRule

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建带默认规则的数据清洗器
func NewDataCleaner() *DataCleaner {
	cleaner := &DataCleaner{
		stats: CleaningStats{Issues: make(map[string]int64)},
	}

	// 添加默认规则
	cleaner.AddRule(NewFiniteValidationRule())
	cleaner.AddRule(NewRangeValidationRule())
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
}

// Clean 依次应用所有规则，返回保留的读数和发现的问题
func (dc *DataCleaner) Clean(readings [][]float64) ([][]float64, []QualityIssue) {
	var cleaned [][]float64
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for row, raw := range readings {
		dc.stats.TotalProcessed++

		reading := append(ml.FeatureVector(nil), raw...)
		corrected := false
		rejected := false

		for _, rule := range dc.rules {
			out, err := rule.Apply(reading)
			if err != nil {
				issues = append(issues, QualityIssue{Type: rule.Name(), Row: row, Message: err.Error()})
				dc.stats.Issues[rule.Name()]++
				rejected = true
				break
			}
			if !equal(out, reading) {
				corrected = true
			}
			reading = out
		}

		if rejected {
			dc.stats.Rejected++
			continue
		}
		if corrected {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned = append(cleaned, reading)
	}

	return cleaned, issues
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============ 清洗规则实现 ============

// FiniteValidationRule 检查特征数量和数值有效性
type FiniteValidationRule struct{}

// NewFiniteValidationRule 创建数值有效性规则
func NewFiniteValidationRule() *FiniteValidationRule {
	return &FiniteValidationRule{}
}

// Name 规则名称
func (r *FiniteValidationRule) Name() string {
	return "finite_validation"
}

// Apply 拒绝长度错误或含 NaN/Inf 的读数
func (r *FiniteValidationRule) Apply(reading ml.FeatureVector) (ml.FeatureVector, error) {
	if err := ml.ValidateFeatures(reading); err != nil {
		return nil, err
	}
	return reading, nil
}

// RangeValidationRule 物理范围检查：污染物和风速不能为负，湿度截断到 [0, 100]
type RangeValidationRule struct {
	MinPressure float64
	MaxPressure float64
}

// NewRangeValidationRule 创建范围检查规则，气压默认 [800, 1100] hPa
func NewRangeValidationRule() *RangeValidationRule {
	return &RangeValidationRule{
		MinPressure: 800,
		MaxPressure: 1100,
	}
}

// Name 规则名称
func (r *RangeValidationRule) Name() string {
	return "range_validation"
}

// Apply 拒绝超出物理范围的读数，湿度越界时截断
func (r *RangeValidationRule) Apply(reading ml.FeatureVector) (ml.FeatureVector, error) {
	if len(reading) != ml.FeatureCount {
		return nil, fmt.Errorf("expected %d features, got %d", ml.FeatureCount, len(reading))
	}
	names := ml.FeatureNames()
	// pm25..o3
	for i := 0; i < 6; i++ {
		if reading[i] < 0 {
			return nil, fmt.Errorf("%s is negative: %v", names[i], reading[i])
		}
	}
	if reading[8] < 0 {
		return nil, fmt.Errorf("wind_speed is negative: %v", reading[8])
	}
	if reading[9] < r.MinPressure || reading[9] > r.MaxPressure {
		return nil, fmt.Errorf("pressure %v outside [%v, %v]", reading[9], r.MinPressure, r.MaxPressure)
	}

	out := reading
	if reading[7] < 0 || reading[7] > 100 {
		out = append(ml.FeatureVector(nil), reading...)
		out[7] = min(max(reading[7], 0), 100)
	}
	return out, nil
}

// DuplicateDetectionRule 重复检测规则
type DuplicateDetectionRule struct {
	seenMap map[string]struct{}
	mu      sync.Mutex
}

// NewDuplicateDetectionRule 创建重复检测规则
func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		seenMap: make(map[string]struct{}),
	}
}

// Name 规则名称
func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

// Apply 拒绝之前出现过的读数
func (r *DuplicateDetectionRule) Apply(reading ml.FeatureVector) (ml.FeatureVector, error) {
	key := fmt.Sprint([]float64(reading))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.seenMap[key]; exists {
		return nil, fmt.Errorf("duplicate reading %s", key)
	}

	r.seenMap[key] = struct{}{}
	return reading, nil
}
