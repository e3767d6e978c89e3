package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kgarg2468/Skintel/internal/analysis"
	"github.com/kgarg2468/Skintel/internal/encoding"
	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/security"
	"github.com/kgarg2468/Skintel/internal/types"
)

const version = "1.0.0"

// analyze reads the upload and runs the pipeline. The returned error is
// already logged and counted.
func (s *server) analyze(c *gin.Context) (*analysis.Report, string, *apperrors.AppError) {
	upload, err := security.ReadUpload(c, s.analyzer.MaxUploadBytes())
	if err != nil {
		return nil, "", s.fail(c, err, true)
	}
	defer s.privacy.Scrub(upload.Data)

	report, err := s.analyzer.Analyze(c.Request.Context(), upload)
	if err != nil {
		return nil, "", s.fail(c, err, false)
	}

	highRisk := make([]string, 0)
	for _, r := range report.AnalysisResults {
		if r.RiskLevel == types.RiskHigh {
			highRisk = append(highRisk, string(r.ID))
		}
	}
	s.metrics.RecordAnalysis(report.Duration, highRisk)

	top, _ := report.AnalysisResults.Top()
	s.logger.AnalysisLogger(report.ID, report.Upload.Fingerprint, string(top.ID), top.Confidence, len(highRisk), report.Duration)

	return report, upload.Filename, nil
}

func (s *server) fail(c *gin.Context, err error, beforeAnalysis bool) *apperrors.AppError {
	appErr := apperrors.ToAppError(err)
	appErr.RequestID = c.GetString("request_id")

	var sizeErr *types.SizeError
	switch {
	case errors.As(err, &sizeErr):
		s.metrics.IncrementUploadRejection()
		s.logger.UploadRejectedLogger(string(appErr.Category), c.ClientIP(), sizeErr.Size)
	case beforeAnalysis:
		s.metrics.IncrementUploadRejection()
		s.logger.UploadRejectedLogger(string(appErr.Category), c.ClientIP(), c.Request.ContentLength)
	default:
		s.metrics.RecordAnalysisFailure(string(appErr.Category))
	}

	apperrors.LogError(c, appErr)
	return appErr
}

// handleAnalyzePage serves the HTML form post and renders the dashboard
func (s *server) handleAnalyzePage(c *gin.Context) {
	report, filename, appErr := s.analyze(c)
	if appErr != nil {
		s.pages.Error(c, appErr)
		return
	}
	s.pages.Results(c, report, filename)
}

// handleAnalyzeAPI godoc
//
//	@Summary		Analyze a skin photo
//	@Description	Accepts a multipart "image" field or a raw JPEG/PNG body and returns the screening report.
//	@Tags			analysis
//	@Accept			multipart/form-data
//	@Accept			image/jpeg
//	@Accept			image/png
//	@Produce		json
//	@Param			image		formData	file	false	"JPEG or PNG photo, 5 MB max"
//	@Param			download	query		bool	false	"Return the report as a file attachment"
//	@Success		200			{object}	analysis.Report
//	@Failure		400			{object}	map[string]interface{}
//	@Failure		413			{object}	map[string]interface{}
//	@Failure		415			{object}	map[string]interface{}
//	@Failure		422			{object}	map[string]interface{}
//	@Failure		429			{object}	map[string]interface{}
//	@Failure		500			{object}	map[string]interface{}
//	@Router			/api/v1/analyze [post]
func (s *server) handleAnalyzeAPI(c *gin.Context) {
	report, _, appErr := s.analyze(c)
	if appErr != nil {
		c.JSON(appErr.HTTPStatus, appErr.Response())
		return
	}

	download, _ := strconv.ParseBool(c.Query("download"))
	var (
		data []byte
		err  error
	)
	if download {
		data, err = encoding.MarshalIndent(report)
	} else {
		data, err = encoding.Marshal(report)
	}
	if err != nil {
		apperrors.Abort(c, apperrors.NewInternalError("encode report", err))
		return
	}

	if download {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="skintel-report-%s.json"`, report.ID))
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// handleConditions godoc
//
//	@Summary	List screened conditions
//	@Tags		analysis
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/api/v1/conditions [get]
func (s *server) handleConditions(c *gin.Context) {
	conditions := analysis.Conditions()
	c.JSON(http.StatusOK, gin.H{
		"conditions": conditions,
		"count":      len(conditions),
	})
}

// handlePrivacy godoc
//
//	@Summary	Privacy notice and retention policy
//	@Tags		privacy
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/api/v1/privacy [get]
func (s *server) handlePrivacy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notice":    s.privacy.Notice(),
		"retention": s.privacy.GetDataRetentionInfo(),
	})
}

// handleHealth godoc
//
//	@Summary	Liveness and dependency status
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/health [get]
func (s *server) handleHealth(c *gin.Context) {
	status := "ok"
	redisStatus := "disabled"
	if s.cfg.RedisAddr != "" {
		redisStatus = "ok"
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			// the limiter falls back to memory, so this degrades rather than fails
			status = "degraded"
			redisStatus = "unavailable"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"services": gin.H{
			"redis": redisStatus,
		},
		"scorer": gin.H{
			"seed_mode": s.cfg.ScorerSeedMode,
		},
	})
}

// handleMetrics godoc
//
//	@Summary	Service metrics
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/metrics [get]
func (s *server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"http":        s.metrics.GetStats(),
		"analysis":    s.metrics.GetAnalysisStats(),
		"rate_limit":  s.metrics.GetRateLimitStats(),
		"limiter":     s.limiter.GetStats(),
		"compression": s.compression.GetStats(),
		"cache":       s.catalog.Stats(),
	})
}
