package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/expression-client/internal/classifier"
	"github.com/example/expression-client/internal/controller"
	"github.com/example/expression-client/internal/preview"
)

// DefaultMaxUploadSize is the largest image accepted by /api/select.
const DefaultMaxUploadSize = 10 << 20

// multipartOverhead leaves room for boundaries and part headers on top of the
// file itself when capping the request body.
const multipartOverhead = 64 << 10

// PreviewLookup resolves live preview handles.
type PreviewLookup interface {
	Lookup(id string) (*preview.Entry, bool)
}

// Options configures the routes.
type Options struct {
	MaxUploadSize int64
	Logger        *zap.Logger
}

type handler struct {
	ctrl          *controller.Controller
	previews      PreviewLookup
	maxUploadSize int64
	logger        *zap.Logger
}

// RegisterRoutes wires the view API to the Gin router.
func RegisterRoutes(router *gin.Engine, ctrl *controller.Controller, previews PreviewLookup, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSize := opts.MaxUploadSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	h := &handler{
		ctrl:          ctrl,
		previews:      previews,
		maxUploadSize: maxSize,
		logger:        logger.Named("handlers"),
	}

	router.Use(accessLog(h.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/state", h.state)
	api.POST("/select", h.selectImage)
	api.POST("/submit", h.submit)
	api.POST("/cancel", h.cancel)
	api.GET("/preview/:id", h.preview)
}

func (h *handler) state(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *handler) selectImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.tooLarge(c)
			return
		}
		_ = h.ctrl.SelectImage(nil)
		c.JSON(http.StatusBadRequest, h.ctrl.State())
		return
	}
	if file.Size > h.maxUploadSize {
		h.tooLarge(c)
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	switch err := h.ctrl.SelectImage(&classifier.Image{Filename: file.Filename, Data: data}); {
	case errors.Is(err, controller.ErrNotImage):
		c.JSON(http.StatusUnsupportedMediaType, h.ctrl.State())
	case errors.Is(err, controller.ErrNoSelection):
		c.JSON(http.StatusBadRequest, h.ctrl.State())
	case err != nil:
		h.logger.Error("selection failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, h.ctrl.State())
	default:
		c.JSON(http.StatusOK, h.ctrl.State())
	}
}

func (h *handler) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
}

func (h *handler) submit(c *gin.Context) {
	// The submission outlives this request unless the caller waits for it.
	done, err := h.ctrl.SubmitAsync(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, controller.ErrInFlight):
		c.JSON(http.StatusConflict, h.ctrl.State())
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, h.ctrl.State())
		return
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, h.ctrl.State())
		return
	}

	select {
	case state := <-done:
		c.JSON(http.StatusOK, state)
	case <-c.Request.Context().Done():
		c.JSON(http.StatusAccepted, h.ctrl.State())
	}
}

func (h *handler) cancel(c *gin.Context) {
	h.ctrl.Cancel()
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *handler) preview(c *gin.Context) {
	entry, ok := h.previews.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, entry.ContentType, entry.Data)
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
