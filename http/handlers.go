package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"airquality/ml"
	"airquality/monitoring"
)

// PredictionRequest 预测请求，十个字段按模型顺序排列
// 使用指针以区分缺失字段和零值读数
type PredictionRequest struct {
	PM25        *float64 `json:"pm25" validate:"required"`
	PM10        *float64 `json:"pm10" validate:"required"`
	SO2         *float64 `json:"so2" validate:"required"`
	NO2         *float64 `json:"no2" validate:"required"`
	CO          *float64 `json:"co" validate:"required"`
	O3          *float64 `json:"o3" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"required"`
	Humidity    *float64 `json:"humidity" validate:"required"`
	WindSpeed   *float64 `json:"wind_speed" validate:"required"`
	Pressure    *float64 `json:"pressure" validate:"required"`
}

// Measurements 转换为特征，调用前请求必须已通过校验
func (r PredictionRequest) Measurements() ml.Measurements {
	return ml.Measurements{
		PM25:        *r.PM25,
		PM10:        *r.PM10,
		SO2:         *r.SO2,
		NO2:         *r.NO2,
		CO:          *r.CO,
		O3:          *r.O3,
		Temperature: *r.Temperature,
		Humidity:    *r.Humidity,
		WindSpeed:   *r.WindSpeed,
		Pressure:    *r.Pressure,
	}
}

// PredictionResponse 预测响应，附带六项污染物读数
type PredictionResponse struct {
	AQI         float64 `json:"aqi"`
	Level       string  `json:"level"`
	Color       string  `json:"color"`
	Description string  `json:"description"`
	PM25        float64 `json:"pm25"`
	PM10        float64 `json:"pm10"`
	SO2         float64 `json:"so2"`
	NO2         float64 `json:"no2"`
	CO          float64 `json:"co"`
	O3          float64 `json:"o3"`
	ModelLoaded bool    `json:"model_loaded"`
	Error       string  `json:"error,omitempty"`
}

// BatchPredictionRequest 批量预测请求
type BatchPredictionRequest struct {
	Samples []PredictionRequest `json:"samples" validate:"required,min=1,dive"`
}

// BatchPredictionResponse 批量预测响应
type BatchPredictionResponse struct {
	Predictions []PredictionResponse `json:"predictions"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Handler 预测API处理器，持有启动时构建的预测器
type Handler struct {
	predictor    *ml.Predictor
	logger       *zap.Logger
	validate     *validator.Validate
	metrics      *monitoring.PredictionMetrics
	maxBatchSize int
}

// NewHandler 创建处理器，maxBatchSize 限制批量请求的样本数
func NewHandler(predictor *ml.Predictor, logger *zap.Logger, maxBatchSize int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return &Handler{
		predictor:    predictor,
		logger:       logger,
		validate:     validate,
		metrics:      monitoring.NewPredictionMetrics(),
		maxBatchSize: maxBatchSize,
	}
}

// Register 注册所有路由
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /model-info", h.handleModelInfo)
	mux.HandleFunc("GET /feature-importance", h.handleFeatureImportance)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("POST /predict/batch", h.handlePredictBatch)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Air Quality Prediction API is running"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"model_loaded": h.predictor.ModelLoaded(),
	})
}

func (h *Handler) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.predictor.Info())
}

func (h *Handler) handleFeatureImportance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature_importance": h.predictor.FeatureImportance(),
	})
}

// handleMetrics 返回预测指标，format=prometheus 时输出文本格式
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, h.metrics.ExportPrometheus())
		return
	}
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req PredictionRequest
	if err := h.decode(r, &req); err != nil {
		h.metrics.RecordRequest(r.URL.Path, monitoring.OutcomeInvalid, time.Since(start))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	features := req.Measurements().Vector()
	h.logger.Debug("prediction request",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Float64s("features", features),
	)

	result, err := h.predictor.Predict(features)
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.record(r, start, result)
	writeJSON(w, http.StatusOK, newPredictionResponse(result))
}

func (h *Handler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req BatchPredictionRequest
	if err := h.decode(r, &req); err != nil {
		h.metrics.RecordRequest(r.URL.Path, monitoring.OutcomeInvalid, time.Since(start))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if h.maxBatchSize > 0 && len(req.Samples) > h.maxBatchSize {
		h.metrics.RecordRequest(r.URL.Path, monitoring.OutcomeInvalid, time.Since(start))
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("batch has %d samples, limit is %d", len(req.Samples), h.maxBatchSize))
		return
	}

	samples := make([][]float64, len(req.Samples))
	for i, sample := range req.Samples {
		samples[i] = sample.Measurements().Vector()
	}
	results, err := h.predictor.PredictBatch(samples)
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.record(r, start, results...)

	resp := BatchPredictionResponse{Predictions: make([]PredictionResponse, len(results))}
	for i, result := range results {
		resp.Predictions[i] = newPredictionResponse(result)
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode 解析JSON请求体并执行结构校验
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("request body exceeds %d bytes", maxBytes.Limit)
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return errors.New(validationMessage(validationErrs))
		}
		return err
	}
	return nil
}

// record 记录一次成功请求；任一结果降级则整个请求记为降级
func (h *Handler) record(r *http.Request, start time.Time, results ...ml.PredictionResult) {
	outcome := monitoring.OutcomeOK
	for _, result := range results {
		if result.Error != "" {
			outcome = monitoring.OutcomeDegraded
		}
		h.metrics.RecordPrediction(result.Level.Name, result.AQI)
	}
	h.metrics.RecordRequest(r.URL.Path, outcome, time.Since(start))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	if ml.IsInvalidInput(err) {
		h.metrics.RecordRequest(r.URL.Path, monitoring.OutcomeInvalid, time.Since(start))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.metrics.RecordRequest(r.URL.Path, monitoring.OutcomeError, time.Since(start))
	h.logger.Error("prediction error",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func newPredictionResponse(result ml.PredictionResult) PredictionResponse {
	f := result.Features
	return PredictionResponse{
		AQI:         result.AQI,
		Level:       result.Level.Name,
		Color:       result.Level.Color,
		Description: result.Level.Description,
		PM25:        f[0],
		PM10:        f[1],
		SO2:         f[2],
		NO2:         f[3],
		CO:          f[4],
		O3:          f[5],
		ModelLoaded: result.ModelLoaded,
		Error:       result.Error,
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	messages := make([]string, 0, len(errs))
	for _, fieldErr := range errs {
		field := fieldErr.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			messages = append(messages, field+" must have at least "+fieldErr.Param()+" entries")
		default:
			messages = append(messages, field+" is invalid")
		}
	}
	return strings.Join(messages, "; ")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
