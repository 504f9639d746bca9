// Package server publishes stills and camera controls over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/adamlouis/capture"
	"github.com/adamlouis/capture/snapshot"
	"github.com/adamlouis/capture/v4l2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Camera is the part of a snapshot.Snapper the server uses.
type Camera interface {
	Snap(ctx context.Context) (*image.YCbCr, error)
	Status() snapshot.Status
	Controls(ctx context.Context) ([]capture.Control, error)
	SetControl(ctx context.Context, id v4l2.ControlID, normalized int) (int32, error)
}

// controlNames maps friendly names to control ids.
var controlNames = map[string]v4l2.ControlID{
	"brightness":    v4l2.CIDBrightness,
	"contrast":      v4l2.CIDContrast,
	"saturation":    v4l2.CIDSaturation,
	"hue":           v4l2.CIDHue,
	"red_balance":   v4l2.CIDRedBalance,
	"blue_balance":  v4l2.CIDBlueBalance,
	"exposure":      v4l2.CIDExposure,
	"autogain":      v4l2.CIDAutogain,
	"gain":          v4l2.CIDGain,
	"dac_magnitude": v4l2.CIDDACMagnitude,
	"green_balance": v4l2.CIDGreenBalance,
}

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	snapTimeout  = 5 * time.Second
	defaultFPS   = 10
	maxFPS       = 60
)

// ControlInfo is the JSON form of a discovered control.
type ControlInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Min      int32  `json:"min"`
	Max      int32  `json:"max"`
	Default  int32  `json:"default"`
	Value    int32  `json:"value"`
	Disabled bool   `json:"disabled"`
}

type setControlRequest struct {
	Value *int `json:"value" binding:"required"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler serves the capture API.
type Handler struct {
	cam Camera
	log *zap.Logger
}

// New returns a gin engine with every route installed.
func New(cam Camera, log *zap.Logger) *gin.Engine {
	h := &Handler{cam: cam, log: log}
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests)

	r.GET("/health", h.health)
	r.GET("/status", h.status)
	r.GET("/snapshot.jpg", h.snapshot(encodeJPEG))
	r.GET("/snapshot.jpeg", h.snapshot(encodeJPEG))
	r.GET("/snapshot.png", h.snapshot(encodePNG))
	r.GET("/stream.mjpg", h.stream)
	r.GET("/controls", h.controls)
	r.PUT("/controls/:id", h.setControl)
	return r
}

// NewHTTPServer serves the routes on addr. Streams are exempt from the
// write timeout, which would otherwise end them.
func NewHTTPServer(addr string, cam Camera, log *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           exemptStreams(New(cam, log), log),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

func exemptStreams(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/stream") {
			if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
				log.Debug("cannot clear write deadline", zap.Error(err))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.cam.Status())
}

type encoder func(c *gin.Context, img image.Image) error

func encodeJPEG(c *gin.Context, img image.Image) error {
	quality := jpeg.DefaultQuality
	if q := c.Query("quality"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 100 {
			return fmt.Errorf("quality %q outside 1..100", q)
		}
		quality = n
	}
	c.Header("Content-Type", "image/jpeg")
	return jpeg.Encode(c.Writer, img, &jpeg.Options{Quality: quality})
}

func encodePNG(c *gin.Context, img image.Image) error {
	c.Header("Content-Type", "image/png")
	return png.Encode(c.Writer, img)
}

func (h *Handler) snapshot(encode encoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), snapTimeout)
		defer cancel()
		img, err := h.cam.Snap(ctx)
		if err != nil {
			h.log.Warn("snap failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no_frame", Message: err.Error()})
			return
		}
		if err := encode(c, img); err != nil {
			h.log.Warn("encode failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, errorResponse{Error: "encode", Message: err.Error()})
		}
	}
}

// stream serves stills as multipart/x-mixed-replace until the client
// goes away.
func (h *Handler) stream(c *gin.Context) {
	fps := defaultFPS
	if v := c.Query("fps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxFPS {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_fps", Message: fmt.Sprintf("fps must be within 1..%d", maxFPS)})
			return
		}
		fps = n
	}

	const boundary = `frame`
	c.Header("Content-Type", `multipart/x-mixed-replace;boundary=`+boundary)
	c.Header("Cache-Control", "no-cache")
	mw := multipart.NewWriter(c.Writer)
	mw.SetBoundary(boundary)

	ctx := c.Request.Context()
	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()
	var buf bytes.Buffer
	for {
		img, err := h.cam.Snap(ctx)
		if err != nil {
			h.log.Debug("stream ended", zap.Error(err))
			return
		}
		buf.Reset()
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			h.log.Warn("encode failed", zap.Error(err))
			return
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   []string{"image/jpeg"},
			"Content-Length": []string{strconv.Itoa(buf.Len())},
		})
		if err != nil {
			return
		}
		if _, err := pw.Write(buf.Bytes()); err != nil {
			return
		}
		c.Writer.Flush()

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (h *Handler) controls(c *gin.Context) {
	controls, err := h.cam.Controls(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: err.Error()})
		return
	}
	out := make([]ControlInfo, 0, len(controls))
	for _, ctrl := range controls {
		out = append(out, ControlInfo{
			ID:       fmt.Sprintf("0x%08x", uint32(ctrl.ID)),
			Name:     ctrl.Name,
			Min:      ctrl.Min,
			Max:      ctrl.Max,
			Default:  ctrl.Default,
			Value:    ctrl.Value,
			Disabled: ctrl.Disabled,
		})
	}
	c.JSON(http.StatusOK, gin.H{"controls": out})
}

func (h *Handler) setControl(c *gin.Context) {
	id, err := ParseControlID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_control", Message: err.Error()})
		return
	}
	var req setControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}
	if *req.Value < 0 || *req.Value > 255 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_value", Message: "value must be within 0..255"})
		return
	}

	value, err := h.cam.SetControl(c.Request.Context(), id, *req.Value)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"id": fmt.Sprintf("0x%08x", uint32(id)), "value": value})
	case errors.Is(err, capture.ErrUnknownControl):
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown_control", Message: err.Error()})
	case errors.Is(err, capture.ErrUnsupportedControlType):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "unsupported_control", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "device", Message: err.Error()})
	}
}

// ParseControlID accepts a control name such as "brightness" or a
// numeric id such as "0x00980900".
func ParseControlID(s string) (v4l2.ControlID, error) {
	if id, ok := controlNames[strings.ToLower(s)]; ok {
		return id, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown control %q", s)
	}
	return v4l2.ControlID(n), nil
}
