package generationhttp

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/module/browser"
	"github.com/vidgen/studio/internal/module/shell"
	"github.com/vidgen/studio/internal/port/outbound"
	apperrors "github.com/vidgen/studio/internal/shared/errors"
	"github.com/vidgen/studio/internal/shared/logger"
	"github.com/vidgen/studio/internal/utils/metrics"
	"github.com/vidgen/studio/internal/utils/middleware"
)

const (
	defaultMaxUploadBytes = 20 << 20
	imageFormField        = "image"
	platformHeader        = "X-Client-Platform"
)

// VideoOpener opens persisted videos for playback.
type VideoOpener interface {
	Open(location string) (io.ReadSeekCloser, error)
}

// Config holds handler settings.
type Config struct {
	// PublicURL prefixes links handed to clients. Empty means relative links.
	PublicURL      string
	MaxUploadBytes int64
}

// Handler handles generation HTTP requests.
type Handler struct {
	shell   *shell.Shell
	files   VideoOpener
	sharer  outbound.VideoSharePort
	browser *browser.Module
	metrics *metrics.Metrics
	config  Config
	logger  *zap.Logger
}

// NewHandler creates a new generation handler. sharer and m may be nil.
func NewHandler(
	sh *shell.Shell,
	files VideoOpener,
	sharer outbound.VideoSharePort,
	browserModule *browser.Module,
	m *metrics.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		shell:   sh,
		files:   files,
		sharer:  sharer,
		browser: browserModule,
		metrics: m,
		config:  cfg,
		logger:  logger,
	}
}

// RegisterRoutes registers generation and browser routes. submitLimit guards
// submissions and may be nil.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, submitLimit gin.HandlerFunc) {
	gen := r.Group("/generations/:mode")
	{
		if submitLimit != nil {
			gen.POST("", submitLimit, h.Submit)
		} else {
			gen.POST("", h.Submit)
		}
		gen.GET("", h.GetState)
		gen.DELETE("", h.Clear)
		gen.POST("/cancel", h.Cancel)
		gen.GET("/video", h.GetVideo)
		gen.HEAD("/video", h.GetVideo)
		gen.POST("/share", h.Share)
	}

	r.GET("/browser", h.GetBrowserTarget)
}

// Submit starts a generation and returns the pending state.
func (h *Handler) Submit(c *gin.Context) {
	mode, ok := h.mode(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.MaxUploadBytes)

	var (
		req *model.GenerationRequest
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		req, err = h.bindMultipart(c, mode)
	} else {
		req, err = bindJSON(c, mode)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	state, err := h.shell.Start(c.Request.Context(), middleware.GetSession(c), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, h.toStateResponse(c, state))
}

func bindJSON(c *gin.Context, mode model.GenerationMode) (*model.GenerationRequest, error) {
	var input submitRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		return nil, bindError(err)
	}

	req := &model.GenerationRequest{
		Mode:       mode,
		Prompt:     input.Prompt,
		Duration:   model.VideoDuration(input.Duration),
		Resolution: model.VideoResolution(input.Resolution),
	}
	if input.ImageBase64 != "" {
		contentType, data, err := decodeImage(input.ImageBase64, input.ImageContentType)
		if err != nil {
			return nil, apperrors.ValidationError("image_base64 is not valid base64")
		}
		req.SourceImage = &model.SourceImage{Data: data, ContentType: contentType, Name: input.ImageName}
	}
	return req, nil
}

func (h *Handler) bindMultipart(c *gin.Context, mode model.GenerationMode) (*model.GenerationRequest, error) {
	if err := c.Request.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		return nil, bindError(err)
	}

	req := &model.GenerationRequest{
		Mode:       mode,
		Prompt:     c.PostForm("prompt"),
		Resolution: model.VideoResolution(c.PostForm("resolution")),
	}
	if raw := c.PostForm("duration"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperrors.ValidationError("duration must be a number of seconds")
		}
		req.Duration = model.VideoDuration(seconds)
	}

	header, err := c.FormFile(imageFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return nil, bindError(err)
	default:
		image, err := readImage(header)
		if err != nil {
			return nil, err
		}
		req.SourceImage = image
	}
	return req, nil
}

func readImage(header *multipart.FileHeader) (*model.SourceImage, error) {
	f, err := header.Open()
	if err != nil {
		return nil, apperrors.BadRequest("image upload could not be read")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.BadRequest("image upload could not be read")
	}
	return &model.SourceImage{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Name:        header.Filename,
	}, nil
}

// decodeImage accepts plain base64 or a data URI.
func decodeImage(raw, contentType string) (string, []byte, error) {
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return "", nil, errors.New("malformed data URI")
		}
		if contentType == "" {
			contentType = strings.TrimSuffix(meta, ";base64")
		}
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", nil, err
	}
	return contentType, data, nil
}

func bindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewAppError("PAYLOAD_TOO_LARGE",
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
			http.StatusRequestEntityTooLarge, apperrors.ErrBadRequest)
	}
	return apperrors.BadRequest("invalid request body")
}

// GetState returns the current state of a mode.
func (h *Handler) GetState(c *gin.Context) {
	mode, ok := h.mode(c)
	if !ok {
		return
	}

	state, err := h.shell.State(c.Request.Context(), middleware.GetSession(c), mode)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toStateResponse(c, state))
}

// Clear resets a mode to idle.
func (h *Handler) Clear(c *gin.Context) {
	mode, ok := h.mode(c)
	if !ok {
		return
	}

	if err := h.shell.Clear(c.Request.Context(), middleware.GetSession(c), mode); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toStateResponse(c, model.IdleState(mode)))
}

// Cancel aborts an in-flight generation.
func (h *Handler) Cancel(c *gin.Context) {
	mode, ok := h.mode(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cancelResponse{Cancelled: h.shell.Cancel(middleware.GetSession(c), mode)})
}

// GetVideo streams the generated video for playback. Range requests are supported.
func (h *Handler) GetVideo(c *gin.Context) {
	result, ok := h.succeeded(c)
	if !ok {
		return
	}

	f, err := h.files.Open(result.Location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.handleError(c, apperrors.NotFound("video"))
			return
		}
		h.handleError(c, apperrors.Internal("video could not be opened", err))
		return
	}
	defer f.Close()

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(result.Location)))
	http.ServeContent(c.Writer, c.Request, filepath.Base(result.Location), result.CreatedAt, f)
}

// Share returns a link for the generated video. Without object storage the
// link points at this server's playback route.
func (h *Handler) Share(c *gin.Context) {
	result, ok := h.succeeded(c)
	if !ok {
		return
	}

	if h.sharer != nil {
		link, err := h.sharer.Share(c.Request.Context(), result)
		switch {
		case err == nil:
			h.recordShare("object_storage")
			c.JSON(http.StatusOK, shareResponse{URL: link.URL, ExpiresAt: link.ExpiresAt})
			return
		case !errors.Is(err, outbound.ErrShareUnavailable):
			h.recordShare("error")
			h.logger.Warn("Share upload failed",
				zap.String("result_id", result.ID.String()),
				zap.Error(err),
			)
			h.handleError(c, apperrors.Upstream("Sharing failed. Please try again.", err))
			return
		}
	}

	h.recordShare("local")
	c.JSON(http.StatusOK, shareResponse{URL: h.videoURL(c, result.Mode), Local: true})
}

// GetBrowserTarget returns the browser tab target for the calling platform.
func (h *Handler) GetBrowserTarget(c *gin.Context) {
	platform := c.Query("platform")
	if platform == "" {
		platform = c.GetHeader(platformHeader)
	}
	c.JSON(http.StatusOK, h.browser.Target(browser.ParsePlatform(platform)))
}

// mode parses the :mode path parameter, writing a 404 when it is unknown.
func (h *Handler) mode(c *gin.Context) (model.GenerationMode, bool) {
	mode, err := model.ParseGenerationMode(c.Param("mode"))
	if err != nil {
		h.handleError(c, apperrors.NotFound("generation mode"))
		return "", false
	}
	return mode, true
}

// succeeded loads the result of a succeeded mode, writing a 404 otherwise.
func (h *Handler) succeeded(c *gin.Context) (*model.GenerationResult, bool) {
	mode, ok := h.mode(c)
	if !ok {
		return nil, false
	}
	state, err := h.shell.State(c.Request.Context(), middleware.GetSession(c), mode)
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	if state.Status != model.LifecycleStatusSucceeded || state.Result == nil {
		h.handleError(c, apperrors.NotFound("video"))
		return nil, false
	}
	return state.Result, true
}

func (h *Handler) toStateResponse(c *gin.Context, state *model.LifecycleState) stateResponse {
	resp := stateResponse{
		Mode:         state.Mode,
		Status:       state.Status,
		Notification: state.Reason,
		ErrorKind:    state.ErrorKind,
		UpdatedAt:    state.UpdatedAt,
	}
	if state.Result != nil {
		resp.Result = &resultResponse{
			ID:        state.Result.ID,
			Size:      state.Result.Size,
			CreatedAt: state.Result.CreatedAt,
			VideoURL:  h.videoURL(c, state.Mode),
		}
	}
	return resp
}

// videoURL builds the playback link, carrying the session in the query so
// media elements can use it directly.
func (h *Handler) videoURL(c *gin.Context, mode model.GenerationMode) string {
	q := url.Values{}
	q.Set(middleware.SessionQuery, middleware.GetSession(c))
	return fmt.Sprintf("%s/api/v1/generations/%s/video?%s", h.config.PublicURL, mode, q.Encode())
}

func (h *Handler) recordShare(target string) {
	if h.metrics != nil {
		h.metrics.RecordShare(target)
	}
}

// handleError renders err with the standard error envelope. Server-side
// failures are logged with the request's logger.
func (h *Handler) handleError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Request failed",
			"path", c.FullPath(),
			"code", appErr.Code,
			"error", err,
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var genErr *model.GenerationError
	if !errors.As(err, &genErr) {
		return apperrors.Internal("internal server error", err)
	}

	message := shell.Notification(genErr)
	switch genErr.Kind {
	case model.GenerationErrorValidation:
		return apperrors.ValidationError(message)
	case model.GenerationErrorConfiguration:
		return apperrors.ConfigurationError(message)
	case model.GenerationErrorInProgress:
		return apperrors.Conflict("GENERATION_IN_PROGRESS", message)
	case model.GenerationErrorCancelled:
		return apperrors.NewAppError("UNAVAILABLE", message, http.StatusServiceUnavailable, apperrors.ErrUnavailable)
	default:
		return apperrors.Upstream(message, genErr)
	}
}
