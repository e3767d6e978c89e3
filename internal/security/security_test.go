package security

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{R: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

// readThrough runs ReadUpload inside a gin handler and returns its results
func readThrough(t *testing.T, req *http.Request, limit int64) (types.Upload, error) {
	t.Helper()
	var (
		upload types.Upload
		err    error
	)
	router := gin.New()
	router.POST("/upload", func(c *gin.Context) {
		upload, err = ReadUpload(c, limit)
		c.Status(http.StatusNoContent)
	})
	router.ServeHTTP(httptest.NewRecorder(), req)
	return upload, err
}

func TestReadUpload_Multipart(t *testing.T) {
	data := tinyPNG(t)
	body, contentType := multipartBody(t, UploadField, "../../etc/arm photo.png", data)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)

	upload, err := readThrough(t, req, 1<<20)

	require.NoError(t, err)
	assert.Equal(t, data, upload.Data)
	assert.Equal(t, "arm photo.png", upload.Filename)
	assert.Equal(t, "image/png", upload.ContentType)
}

func TestReadUpload_RawBody(t *testing.T) {
	data := tinyPNG(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(data))
	req.Header.Set("Content-Type", "image/png")

	upload, err := readThrough(t, req, 1<<20)

	require.NoError(t, err)
	assert.Equal(t, data, upload.Data)
	assert.Empty(t, upload.Filename)
}

func TestReadUpload_Rejections(t *testing.T) {
	const limit = 1024
	pngData := tinyPNG(t)

	tests := []struct {
		name    string
		request func() *http.Request
		check   func(t *testing.T, err error)
	}{
		{
			name: "raw body over the limit",
			request: func() *http.Request {
				data := append(append([]byte{}, pngData...), make([]byte, 2*limit)...)
				req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(data))
				req.Header.Set("Content-Type", "image/png")
				req.ContentLength = -1
				return req
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, types.ErrInputTooLarge)
			},
		},
		{
			name: "declared length over the limit",
			request: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
				req.Header.Set("Content-Type", "image/png")
				req.ContentLength = 10 << 20
				return req
			},
			check: func(t *testing.T, err error) {
				var sizeErr *types.SizeError
				require.True(t, errors.As(err, &sizeErr))
				assert.Equal(t, int64(10<<20), sizeErr.Size)
			},
		},
		{
			name: "multipart file over the limit",
			request: func() *http.Request {
				body, ct := multipartBody(t, UploadField, "big.png", make([]byte, limit+10))
				req := httptest.NewRequest(http.MethodPost, "/upload", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, types.ErrInputTooLarge)
			},
		},
		{
			name: "text file",
			request: func() *http.Request {
				body, ct := multipartBody(t, UploadField, "notes.png", []byte("hello, this is plain text"))
				req := httptest.NewRequest(http.MethodPost, "/upload", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, types.ErrUnsupportedMedia)
				assert.Equal(t, http.StatusUnsupportedMediaType, apperrors.ToAppError(err).HTTPStatus)
			},
		},
		{
			name: "missing image field",
			request: func() *http.Request {
				body, ct := multipartBody(t, "photo", "a.png", pngData)
				req := httptest.NewRequest(http.MethodPost, "/upload", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			check: func(t *testing.T, err error) {
				assert.Equal(t, http.StatusBadRequest, apperrors.ToAppError(err).HTTPStatus)
			},
		},
		{
			name: "empty raw body",
			request: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/upload", http.NoBody)
				req.Header.Set("Content-Type", "image/jpeg")
				return req
			},
			check: func(t *testing.T, err error) {
				assert.Equal(t, apperrors.CategoryValidation, apperrors.ToAppError(err).Category)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readThrough(t, tt.request(), limit)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"photo.jpg", "photo.jpg"},
		{"  ../../secret/face.png ", "face.png"},
		{`C:\Users\me\arm.jpeg`, "arm.jpeg"},
		{"<script>x.png", "scriptx.png"},
		{"bad\x00name.png", "badname.png"},
		{"", ""},
		{strings.Repeat("a", 300), strings.Repeat("a", maxFilenameLength)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		sm := NewSecurityMiddleware(SecurityConfig{EnableHSTS: hsts})
		router := gin.New()
		router.Use(sm.Headers()...)
		router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetNonce(c)) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, hsts, w.Header().Get("Strict-Transport-Security") != "")

		nonce := w.Body.String()
		require.NotEmpty(t, nonce)
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "'nonce-"+nonce+"'")
		assert.Empty(t, w.Header().Get("Content-Security-Policy-Report-Only"))
	}
}

func TestGenerateNonce_Unique(t *testing.T) {
	a, err := GenerateNonce()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCORS(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{AllowedOrigins: []string{"https://skin.example"}})
	router := gin.New()
	router.Use(sm.CORS())
	router.GET("/api/v1/conditions", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://skin.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/conditions", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Equal(t, http.StatusForbidden, w.Code)
			}
		})
	}
}

func TestValidateContentType(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())
	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	router.POST("/analyze", sm.ValidateContentType, func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		contentType string
		expected    int
	}{
		{"multipart/form-data; boundary=x", http.StatusNoContent},
		{"image/png", http.StatusNoContent},
		{"application/json", http.StatusUnsupportedMediaType},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	sm := NewSecurityMiddleware(SecurityConfig{RequestTimeout: 2 * time.Second})
	router := gin.New()
	router.Use(sm.RequestTimeout)

	var hasDeadline bool
	router.GET("/", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, hasDeadline)
	assert.Equal(t, "2", w.Header().Get("X-Timeout"))
}

func TestTrustProxies(t *testing.T) {
	clientIP := func(r *gin.Engine) string {
		var ip string
		r.GET("/ip", func(c *gin.Context) { ip = c.ClientIP() })
		req := httptest.NewRequest(http.MethodGet, "/ip", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		req.Header.Set("X-Forwarded-For", "198.51.100.7")
		r.ServeHTTP(httptest.NewRecorder(), req)
		return ip
	}

	tests := []struct {
		name    string
		proxies []string
		wantIP  string
		wantErr bool
	}{
		{"none trusted uses the socket address", nil, "10.1.2.3", false},
		{"trusted range honours the header", []string{"10.0.0.0/8"}, "198.51.100.7", false},
		{"other proxy is ignored", []string{"192.168.0.1"}, "10.1.2.3", false},
		{"invalid entry falls back to none", []string{"not-a-proxy"}, "10.1.2.3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			err := NewSecurityMiddleware(SecurityConfig{TrustedProxies: tt.proxies}).TrustProxies(r)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CategoryConfiguration, apperrors.ToAppError(err).Category)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantIP, clientIP(r))
		})
	}
}
