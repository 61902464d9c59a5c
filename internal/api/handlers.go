package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	imagepkg "github.com/youruser/thumbapp/internal/image"
	"github.com/youruser/thumbapp/internal/observability"
	"github.com/youruser/thumbapp/internal/store"
	"github.com/youruser/thumbapp/internal/thumbnail"
)

const (
	// logo plus form fields
	maxUploadBytes = imagepkg.MaxLogoBytes + 1<<20

	defaultQRSize = imagepkg.BadgeSize
	maxQRSize     = 512
)

// Generator is the pipeline entry point.
type Generator interface {
	Generate(ctx context.Context, req thumbnail.GenerationRequest) (*thumbnail.Artifact, error)
}

// ArtifactStore lists and opens saved thumbnails.
type ArtifactStore interface {
	List(limit int) ([]store.Summary, int, error)
	Open(filename string) (*os.File, fs.FileInfo, error)
	Dir() string
}

type Settings struct {
	Version     string
	Environment string
	MaxList     int
}

type Handler struct {
	gen      Generator
	store    ArtifactStore
	settings Settings
	logger   *observability.Logger
	validate *validator.Validate
}

func NewHandler(gen Generator, st ArtifactStore, settings Settings, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	if settings.MaxList <= 0 {
		settings.MaxList = 50
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return &Handler{gen: gen, store: st, settings: settings, logger: logger.WithComponent("api"), validate: v}
}

type generateForm struct {
	Title       string `form:"title" validate:"required,min=5,max=120"`
	Topic       string `form:"topic" validate:"required,min=3,max=160"`
	AccentColor string `form:"accent_color" validate:"len=7,hexcolor"`
	ChannelURL  string `form:"channel_url" validate:"omitempty,max=200,http_url"`
}

type generateResponse struct {
	Filename  string `json:"filename"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"size_bytes"`
	URL       string `json:"url"`
}

type listResponse struct {
	Thumbnails []store.Summary `json:"thumbnails"`
	TotalCount int             `json:"total_count"`
}

// health
func (h *Handler) health(c *gin.Context) {
	_, err := os.Stat(h.store.Dir())
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"version":         h.settings.Version,
		"environment":     h.settings.Environment,
		"data_dir_exists": err == nil,
	})
}

func (h *Handler) generate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form := generateForm{
		Title:       strings.TrimSpace(c.PostForm("title")),
		Topic:       strings.TrimSpace(c.PostForm("topic")),
		AccentColor: strings.ToUpper(strings.TrimSpace(c.DefaultPostForm("accent_color", imagepkg.DefaultAccent))),
		ChannelURL:  strings.TrimSpace(c.PostForm("channel_url")),
	}
	if form.AccentColor == "" {
		form.AccentColor = imagepkg.DefaultAccent
	}
	if err := h.validate.Struct(form); err != nil {
		writeError(c, thumbnail.KindInvalidRequest, validationMessage(err))
		return
	}

	logo, logoMIME, ok := h.readLogo(c)
	if !ok {
		return
	}

	art, err := h.gen.Generate(c.Request.Context(), thumbnail.GenerationRequest{
		Title:       form.Title,
		Topic:       form.Topic,
		AccentColor: form.AccentColor,
		Logo:        logo,
		LogoMIME:    logoMIME,
		ChannelURL:  form.ChannelURL,
		RequestID:   c.GetString(requestIDKey),
	})
	if err != nil {
		kind := thumbnail.KindOf(err)
		msg := messageFor(kind)
		if kind == thumbnail.KindInvalidRequest {
			msg = err.Error()
		}
		writeError(c, kind, msg)
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		Filename:  art.Filename,
		Width:     art.WidthPx,
		Height:    art.HeightPx,
		SizeBytes: art.SizeBytes,
		URL:       "/api/files/" + art.Filename,
	})
}

// readLogo returns the optional uploaded logo. ok is false once an error
// response has been written.
func (h *Handler) readLogo(c *gin.Context) (data []byte, mime string, ok bool) {
	fh, err := c.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", true
	}
	if err != nil {
		writeError(c, thumbnail.KindInvalidRequest, "Could not read the uploaded form")
		return nil, "", false
	}

	mime = strings.ToLower(fh.Header.Get("Content-Type"))
	switch mime {
	case "image/png", "image/jpeg", "image/jpg":
	default:
		writeError(c, thumbnail.KindInvalidLogo, "Logo must be PNG or JPEG format")
		return nil, "", false
	}
	if fh.Size > imagepkg.MaxLogoBytes {
		writeError(c, thumbnail.KindInvalidLogo, "Logo file size must be ≤ 2MB")
		return nil, "", false
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, thumbnail.KindInvalidRequest, "Could not read the uploaded logo")
		return nil, "", false
	}
	defer f.Close()
	data, err = io.ReadAll(io.LimitReader(f, imagepkg.MaxLogoBytes+1))
	if err != nil {
		writeError(c, thumbnail.KindInvalidRequest, "Could not read the uploaded logo")
		return nil, "", false
	}
	if len(data) > imagepkg.MaxLogoBytes {
		writeError(c, thumbnail.KindInvalidLogo, "Logo file size must be ≤ 2MB")
		return nil, "", false
	}
	return data, mime, true
}

func (h *Handler) listThumbnails(c *gin.Context) {
	limit := h.settings.MaxList
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, thumbnail.KindInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, h.settings.MaxList)
	}

	items, total, err := h.store.List(limit)
	if err != nil {
		h.logger.Error(err, "list thumbnails")
		writeError(c, thumbnail.KindOf(err), "Failed to retrieve thumbnail list")
		return
	}
	c.JSON(http.StatusOK, listResponse{Thumbnails: items, TotalCount: total})
}

func (h *Handler) serveFile(c *gin.Context) {
	name := c.Param("filename")
	f, info, err := h.store.Open(name)
	if err != nil {
		kind := thumbnail.KindOf(err)
		if kind == thumbnail.KindIOFailure || kind == thumbnail.KindInternal {
			h.logger.Error(err, "open thumbnail")
		}
		writeError(c, kind, messageFor(kind))
		return
	}
	defer f.Close()

	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Content-Type", "image/jpeg")
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
}

// qrPreview returns a PNG preview of the channel badge for the url query param.
func (h *Handler) qrPreview(c *gin.Context) {
	text := c.Query("url")
	size := defaultQRSize
	if raw := c.Query("size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			size = min(v, maxQRSize)
		}
	}
	badge, err := imagepkg.QRBadge(text, size)
	if err != nil {
		writeError(c, thumbnail.KindInvalidRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, badge); err != nil {
		writeError(c, thumbnail.KindInternal, messageFor(thumbnail.KindInternal))
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind thumbnail.Kind) int {
	switch kind {
	case thumbnail.KindInvalidRequest, thumbnail.KindInvalidLogo, thumbnail.KindPathRejected:
		return http.StatusBadRequest
	case thumbnail.KindNotFound:
		return http.StatusNotFound
	case thumbnail.KindTextTooLong:
		return http.StatusUnprocessableEntity
	case thumbnail.KindUpstreamUnavailable, thumbnail.KindInvalidResponse, thumbnail.KindInvalidBackground:
		return http.StatusBadGateway
	case thumbnail.KindBackgroundTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func messageFor(kind thumbnail.Kind) string {
	switch kind {
	case thumbnail.KindTextTooLong:
		return "Title is too long to fit on the thumbnail. Please shorten it."
	case thumbnail.KindInvalidLogo:
		return "Logo must be a valid PNG or JPEG image of at most 2MB"
	case thumbnail.KindUpstreamUnavailable:
		return "Failed to generate background image. Please try again."
	case thumbnail.KindInvalidResponse:
		return "The image service returned an unusable image. Please try again."
	case thumbnail.KindBackgroundTimeout:
		return "Background generation timed out. Please try again."
	case thumbnail.KindInvalidBackground:
		return "Failed to compose thumbnail. Please try again."
	case thumbnail.KindCannotMeetSizeCeiling:
		return "Could not fit the thumbnail under the 2MB size limit"
	case thumbnail.KindNotFound:
		return "Thumbnail not found"
	case thumbnail.KindPathRejected:
		return "Invalid filename"
	}
	return "An unexpected error occurred"
}

func writeError(c *gin.Context, kind thumbnail.Kind, message string) {
	c.AbortWithStatusJSON(StatusFor(kind), gin.H{
		"error":   string(kind),
		"message": message,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between %s characters", fe.Field(), lengthRange(fe.Field()))
	case "len", "hexcolor":
		return fmt.Sprintf("%s must be a hex color like #FF5500", fe.Field())
	case "http_url":
		return fmt.Sprintf("%s must be an http(s) URL", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

func lengthRange(field string) string {
	switch field {
	case "title":
		return fmt.Sprintf("%d and %d", thumbnail.MinTitleLength, thumbnail.MaxTitleLength)
	case "topic":
		return fmt.Sprintf("%d and %d", thumbnail.MinTopicLength, thumbnail.MaxTopicLength)
	}
	return fmt.Sprintf("1 and %d", thumbnail.MaxChannelURLLen)
}
