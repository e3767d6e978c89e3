package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgarg2468/Skintel/internal/analysis"
	"github.com/kgarg2468/Skintel/internal/cache"
	"github.com/kgarg2468/Skintel/internal/config"
	"github.com/kgarg2468/Skintel/internal/frontend"
	"github.com/kgarg2468/Skintel/internal/middleware"
	"github.com/kgarg2468/Skintel/internal/monitoring"
	"github.com/kgarg2468/Skintel/internal/privacy"
	"github.com/kgarg2468/Skintel/internal/ratelimit"
	"github.com/kgarg2468/Skintel/internal/recommend"
	"github.com/kgarg2468/Skintel/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (types.FeatureSet, types.ColorStats, types.PreprocessingInfo, error) {
	f.calls++
	if f.err != nil {
		return types.FeatureSet{}, types.ColorStats{}, types.PreprocessingInfo{}, f.err
	}
	return types.NewFeatureSet(map[types.FeatureKey]float64{
			types.FeatureDarkPixelRatio:   0.45,
			types.FeatureContrast:         60,
			types.FeatureTextureRoughness: 0.2,
			types.FeatureYellowness:       170,
			types.FeatureBrightness:       190,
			types.FeatureColorVariance:    700,
			types.FeatureRednessIndex:     0.2,
			types.FeatureEdgeDensity:      0.12,
		}), types.ColorStats{}, types.PreprocessingInfo{
			OriginalSize:  types.Size{Width: 8, Height: 8},
			ProcessedSize: types.Size{Width: 224, Height: 224},
			SkinCoverage:  12.5,
			Normalization: "Applied [0,1] scaling",
		}, nil
}

type testServer struct {
	router    *gin.Engine
	extractor *fakeExtractor
	metrics   *monitoring.Metrics
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Defaults()
	cfg.GinMode = gin.TestMode
	cfg.MaxUploadBytes = 64 * 1024
	cfg.AllowedOrigins = []string{"https://skin.example"}
	if mutate != nil {
		mutate(&cfg)
	}

	metrics := monitoring.NewMetrics()
	logger := monitoring.NewLoggerWithWriter(io.Discard, cfg.LogLevel)
	redis := &ratelimit.RedisClient{}
	limiter := ratelimit.NewRateLimiter(redis, ratelimit.Config{
		IPLimitPerMin:      cfg.RateLimitPerMin,
		AnalyzeLimitPerMin: cfg.AnalyzePerMin,
	}, metrics)
	t.Cleanup(limiter.Close)

	renderer, err := frontend.NewRenderer()
	require.NoError(t, err)
	static, err := frontend.StaticFS()
	require.NoError(t, err)

	catalog := cache.NewCache(time.Minute)
	t.Cleanup(catalog.Close)

	extractor := &fakeExtractor{}
	privacyService := privacy.NewService()
	srv := &server{
		cfg:         cfg,
		analyzer:    analysis.NewAnalyzer(extractor, analysis.NewScorer(cfg.ScorerConfig()), recommend.NewEngine(), cfg.MaxUploadBytes),
		pages:       frontend.NewPages(renderer, privacyService.Notice(), cfg.MaxUploadBytes),
		static:      static,
		privacy:     privacyService,
		metrics:     metrics,
		logger:      logger,
		limiter:     limiter,
		redis:       redis,
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		catalog:     catalog,
		started:     time.Now(),
	}

	return &testServer{router: srv.routes(), extractor: extractor, metrics: metrics}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "arm.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestAnalyzeAPI_Multipart(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(uploadRequest(t, "/api/v1/analyze", testPNG(t)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["report_id"])

	results, ok := body["analysis_results"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, results, 6)
	assert.Contains(t, results, "Age Spots/Sun Damage")
	for name, raw := range results {
		r := raw.(map[string]interface{})
		confidence := r["confidence"].(float64)
		assert.GreaterOrEqual(t, confidence, 0.0, name)
		assert.LessOrEqual(t, confidence, 95.0, name)
		assert.Contains(t, []interface{}{"Low", "Medium", "High"}, r["risk_level"], name)
	}

	recs := body["recommendations"].(map[string]interface{})
	for _, key := range []string{"lifestyle", "diet", "medical", "action_items"} {
		assert.Contains(t, recs, key)
	}

	upload := body["upload"].(map[string]interface{})
	assert.Len(t, upload["fingerprint"], 12)
	assert.Equal(t, "image/png", upload["format"])
	assert.NotContains(t, w.Body.String(), "arm.png")

	info := body["preprocessing_info"].(map[string]interface{})
	assert.Equal(t, 12.5, info["skin_coverage"])
	assert.Equal(t, 1, ts.extractor.calls)
}

func TestAnalyzeAPI_RawBodyDownload(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?download=true", bytes.NewReader(testPNG(t)))
	req.Header.Set("Content-Type", "image/png")
	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t,
		fmt.Sprintf(`attachment; filename="skintel-report-%s.json"`, body["report_id"]),
		w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "\n  \"report_id\"")
}

func TestAnalyzeAPI_Errors(t *testing.T) {
	tests := []struct {
		name          string
		request       func(t *testing.T) *http.Request
		extractorErr  error
		expected      int
		category      string
		message       string
		extractorUsed bool
	}{
		{
			name: "oversized upload",
			request: func(t *testing.T) *http.Request {
				data := append(testPNG(t), make([]byte, 70*1024)...)
				return uploadRequest(t, "/api/v1/analyze", data)
			},
			expected: http.StatusRequestEntityTooLarge,
			category: "input_too_large",
			message:  "exceeds the 0MB limit",
		},
		{
			name: "not an image",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/analyze", []byte("just some text, definitely not a photo"))
			},
			expected: http.StatusUnsupportedMediaType,
			category: "unsupported_media",
		},
		{
			name: "json body",
			request: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(`{"image":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			expected: http.StatusUnsupportedMediaType,
			category: "unsupported_media",
		},
		{
			name: "missing image field",
			request: func(t *testing.T) *http.Request {
				var body bytes.Buffer
				w := multipart.NewWriter(&body)
				require.NoError(t, w.WriteField("note", "hello"))
				require.NoError(t, w.Close())
				req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
				req.Header.Set("Content-Type", w.FormDataContentType())
				return req
			},
			expected: http.StatusBadRequest,
			category: "validation",
		},
		{
			name: "decode failure",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/analyze", testPNG(t))
			},
			extractorErr:  fmt.Errorf("%w: corrupt stream", types.ErrDecodeFailure),
			expected:      http.StatusUnprocessableEntity,
			category:      "decode_failure",
			message:       "An error occurred during analysis",
			extractorUsed: true,
		},
		{
			name: "extraction failure",
			request: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/analyze", testPNG(t))
			},
			extractorErr:  fmt.Errorf("opencv exploded"),
			expected:      http.StatusInternalServerError,
			category:      "analysis_failed",
			message:       "An error occurred during analysis",
			extractorUsed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.extractor.err = tt.extractorErr

			w := ts.do(tt.request(t))

			require.Equal(t, tt.expected, w.Code, w.Body.String())
			body := decodeBody(t, w)
			assert.Equal(t, tt.category, body["category"])
			assert.NotEmpty(t, body["request_id"])
			if tt.message != "" {
				assert.Contains(t, body["error"], tt.message)
			}
			assert.NotContains(t, w.Body.String(), "opencv exploded")
			assert.Equal(t, tt.extractorUsed, ts.extractor.calls > 0)
		})
	}
}

func TestAnalyzeAPI_OversizeMessage(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.MaxUploadBytes = 5 * 1024 * 1024
	})

	data := append(testPNG(t), make([]byte, 5*1024*1024+600*1024)...)
	w := ts.do(uploadRequest(t, "/api/v1/analyze", data))

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "exceeds the 5MB limit. Please upload a smaller image.")
	assert.Zero(t, ts.extractor.calls)
	assert.Equal(t, int64(1), ts.metrics.GetAnalysisStats()["upload_rejections"])
}

func TestAnalyzePage(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(uploadRequest(t, "/analyze", testPNG(t)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Analysis Complete")
	assert.Contains(t, body, "Recommended Action Items")
	assert.Contains(t, body, "arm.png")
}

func TestAnalyzePage_ErrorRendersForm(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(uploadRequest(t, "/analyze", []byte("plain text upload")))

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Unsupported file type")
	assert.Contains(t, w.Body.String(), `action="/analyze"`)
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `enctype="multipart/form-data"`)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "'nonce-")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestConditionsAndPrivacy(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/conditions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, 6.0, body["count"])

	cached := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/conditions", nil))
	require.Equal(t, http.StatusOK, cached.Code)
	assert.Equal(t, "HIT", cached.Header().Get("X-Cache"))
	assert.JSONEq(t, w.Body.String(), cached.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/privacy", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	retention := body["retention"].(map[string]interface{})
	assert.Equal(t, 0.0, retention["image_retention_seconds"])
	notice := body["notice"].(map[string]interface{})
	assert.Contains(t, notice["disclaimer"], "NOT a substitute")
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(uploadRequest(t, "/api/v1/analyze", testPNG(t))).Code)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	health := decodeBody(t, w)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "disabled", health["services"].(map[string]interface{})["redis"])

	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	metrics := decodeBody(t, w)
	assert.Equal(t, 1.0, metrics["analysis"].(map[string]interface{})["total"])
	assert.Equal(t, false, metrics["limiter"].(map[string]interface{})["redis_enabled"])
}

func TestAnalyzeRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.AnalyzePerMin = 1
	})

	first := ts.do(uploadRequest(t, "/api/v1/analyze", testPNG(t)))
	second := ts.do(uploadRequest(t, "/api/v1/analyze", testPNG(t)))

	assert.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit", decodeBody(t, second)["category"])
	assert.Equal(t, 1, ts.extractor.calls)
}

func TestRateLimit_ForwardedForFromUntrustedPeer(t *testing.T) {
	tests := []struct {
		name           string
		trustedProxies []string
		wantStatuses   []int
	}{
		{"forged headers share the socket budget", nil, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}},
		{"trusted proxy forwards distinct clients", []string{"203.0.113.0/24"}, []int{http.StatusOK, http.StatusOK, http.StatusOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, func(cfg *config.Config) {
				cfg.AnalyzePerMin = 1
				cfg.TrustedProxies = tt.trustedProxies
			})

			for i, want := range tt.wantStatuses {
				req := uploadRequest(t, "/api/v1/analyze", testPNG(t))
				req.RemoteAddr = "203.0.113.9:40000"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))

				assert.Equal(t, want, ts.do(req).Code, "request %d", i+1)
			}
		})
	}
}

func TestRateLimit_IPBudgetIgnoresForgedHeader(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitPerMin = 1
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i+1))
		codes = append(codes, ts.do(req).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	req.Header.Set("Origin", "https://skin.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := ts.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://skin.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompressedJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	req := uploadRequest(t, "/api/v1/analyze", testPNG(t))
	req.Header.Set("Accept-Encoding", "gzip")
	w := ts.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestSwaggerDoc(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Skintel API")
	assert.Contains(t, w.Body.String(), "/api/v1/analyze")
}
