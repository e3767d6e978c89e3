package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/types"
)

// UploadField is the multipart field carrying the photo
const UploadField = "image"

// multipartOverhead leaves room for boundaries and part headers so a file
// right at the limit is not cut off by the body cap
const multipartOverhead = 64 * 1024

var allowedMIMETypes = []string{"image/jpeg", "image/png"}

// ReadUpload reads the photo from a multipart "image" field or from a raw
// image body. Bodies over limit fail with a *types.SizeError before anything
// is decoded. Content that does not sniff as JPEG or PNG fails with
// types.ErrUnsupportedMedia.
func ReadUpload(c *gin.Context, limit int64) (types.Upload, error) {
	if c.Request.ContentLength > limit+multipartOverhead {
		return types.Upload{}, &types.SizeError{Size: c.Request.ContentLength, Limit: limit}
	}

	var (
		data     []byte
		filename string
		err      error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
		data, filename, err = readMultipart(c, limit)
	} else {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		data, err = io.ReadAll(c.Request.Body)
		if err != nil {
			err = bodyError(err, limit)
		}
	}
	if err != nil {
		return types.Upload{}, err
	}

	if len(data) == 0 {
		return types.Upload{}, apperrors.NewValidationError("No image provided. Please upload a JPEG or PNG image.")
	}
	if int64(len(data)) > limit {
		return types.Upload{}, &types.SizeError{Size: int64(len(data)), Limit: limit}
	}

	contentType, err := DetectImageType(data)
	if err != nil {
		return types.Upload{}, err
	}

	return types.Upload{
		Data:        data,
		Filename:    SanitizeFilename(filename),
		ContentType: contentType,
	}, nil
}

// DetectImageType sniffs data and accepts JPEG and PNG only. The declared
// content type and file extension are never trusted.
func DetectImageType(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedMIMETypes...) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedMedia, mtype.String())
	}
	return mtype.String(), nil
}

func readMultipart(c *gin.Context, limit int64) ([]byte, string, error) {
	header, err := c.FormFile(UploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", apperrors.NewValidationError("No image provided. Please upload a JPEG or PNG image.", "missing field "+UploadField)
		}
		return nil, "", bodyError(err, limit)
	}
	if header.Size > limit {
		return nil, "", &types.SizeError{Size: header.Size, Limit: limit}
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", apperrors.NewInternalError("open multipart file", err)
	}
	defer apperrors.SafeClose(file, "multipart file")

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", apperrors.NewInternalError("read multipart file", err)
	}
	return data, header.Filename, nil
}

// bodyError maps a body cap hit to a size error with unknown size. Anything
// else is a malformed request.
func bodyError(err error, limit int64) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return &types.SizeError{Size: -1, Limit: limit}
	}
	return apperrors.NewValidationError("Malformed upload request", err.Error())
}
