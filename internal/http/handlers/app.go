package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leavend/refgen/internal/domain"
	"github.com/leavend/refgen/internal/generation"
	"github.com/leavend/refgen/internal/http/respond"
	"github.com/leavend/refgen/internal/middleware"
)

// App holds the dependencies shared by every handler.
type App struct {
	Service        *generation.Service
	Logger         zerolog.Logger
	MaxUploadBytes int64
}

func NewApp(svc *generation.Service, logger zerolog.Logger, maxUploadBytes int64) *App {
	return &App{Service: svc, Logger: logger, MaxUploadBytes: maxUploadBytes}
}

func (a *App) json(w http.ResponseWriter, code int, message string, v any) {
	respond.JSON(w, code, message, v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, err error) {
	l := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Str("path", r.URL.Path).Logger()
	respond.LogError(&l, err, "request failed")
	respond.Error(w, err)
}

func (a *App) decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Invalid("request body too large", err)
		case errors.Is(err, io.EOF):
			return domain.Invalid("request body is empty", err)
		default:
			return domain.Invalid("invalid JSON body", err)
		}
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func (a *App) parseMultipart(r *http.Request) error {
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Invalid("upload too large", err)
		}
		return domain.Invalid("invalid multipart form", err)
	}
	return nil
}

type formFile struct {
	data     []byte
	name     string
	mimeType string
}

// readFormFile returns nil when field is absent.
func readFormFile(r *http.Request, field string) (*formFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Invalid("invalid file field "+field, err)
	}
	defer file.Close()
	return readPart(file, header)
}

func readPart(file multipart.File, header *multipart.FileHeader) (*formFile, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, domain.Invalid("failed to read upload", err)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &formFile{data: data, name: header.Filename, mimeType: mimeType}, nil
}
