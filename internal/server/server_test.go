package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adamlouis/capture"
	"github.com/adamlouis/capture/snapshot"
	"github.com/adamlouis/capture/v4l2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type stubCamera struct {
	img     *image.YCbCr
	snapErr error
	set     map[v4l2.ControlID]int
}

func (s *stubCamera) Snap(context.Context) (*image.YCbCr, error) {
	return s.img, s.snapErr
}

func (s *stubCamera) Status() snapshot.Status {
	return snapshot.Status{ID: "cam-1", Format: "YUYV", Width: 16, Height: 16, Running: true}
}

func (s *stubCamera) Controls(context.Context) ([]capture.Control, error) {
	return []capture.Control{{ID: v4l2.CIDBrightness, Name: "Brightness", Max: 255, Default: 128, Value: 128}}, nil
}

func (s *stubCamera) SetControl(_ context.Context, id v4l2.ControlID, n int) (int32, error) {
	if id != v4l2.CIDBrightness {
		return 0, &capture.ControlError{ID: id, Err: capture.ErrUnknownControl}
	}
	s.set[id] = n
	return int32(n), nil
}

func newTestServer(t *testing.T) (*gin.Engine, *stubCamera) {
	gin.SetMode(gin.TestMode)
	cam := &stubCamera{
		img: image.NewYCbCr(image.Rect(0, 0, 16, 16), image.YCbCrSubsampleRatio420),
		set: map[v4l2.ControlID]int{},
	}
	return New(cam, zaptest.NewLogger(t)), cam
}

func TestSnapshotJPEG(t *testing.T) {
	r, _ := newTestServer(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot.jpg?quality=50", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("status %d, type %q", w.Code, w.Header().Get("Content-Type"))
	}
	img, err := jpeg.Decode(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("bounds %v", img.Bounds())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot.jpg?quality=500", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad quality: status %d", w.Code)
	}
}

func TestSnapshotUnavailable(t *testing.T) {
	r, cam := newTestServer(t)
	cam.snapErr = snapshot.ErrClosed
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/snapshot.png", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d", w.Code)
	}
}

func TestStatusAndControls(t *testing.T) {
	r, _ := newTestServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	var st snapshot.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.ID != "cam-1" {
		t.Fatalf("status %s: %v", w.Body, err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/controls", nil))
	var got struct{ Controls []ControlInfo }
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Controls) != 1 || got.Controls[0].ID != "0x00980900" {
		t.Errorf("controls %+v", got.Controls)
	}
}

func TestSetControl(t *testing.T) {
	tests := []struct {
		path string
		body string
		code int
	}{
		{"/controls/brightness", `{"value": 200}`, http.StatusOK},
		{"/controls/0x00980900", `{"value": 0}`, http.StatusOK},
		{"/controls/hue", `{"value": 10}`, http.StatusNotFound},
		{"/controls/focus", `{"value": 10}`, http.StatusBadRequest},
		{"/controls/brightness", `{"value": 256}`, http.StatusBadRequest},
		{"/controls/brightness", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		r, cam := newTestServer(t)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, tt.path, bytes.NewBufferString(tt.body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != tt.code {
			t.Errorf("PUT %s %s: status %d, want %d", tt.path, tt.body, w.Code, tt.code)
		}
		if tt.code == http.StatusOK && len(cam.set) != 1 {
			t.Errorf("PUT %s: control not written", tt.path)
		}
	}
}

func TestParseControlID(t *testing.T) {
	tests := []struct {
		in   string
		want v4l2.ControlID
		ok   bool
	}{
		{"Brightness", v4l2.CIDBrightness, true},
		{"green_balance", v4l2.CIDGreenBalance, true},
		{"0x00980913", v4l2.CIDGain, true},
		{"9963776", v4l2.CIDBrightness, true},
		{"sharpness", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseControlID(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseControlID(%q) = %#x, %v", tt.in, uint32(got), err)
		}
	}
}

func TestStream(t *testing.T) {
	r, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream.mjpg?fps=50", nil).WithContext(ctx))
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "multipart/x-mixed-replace") {
		t.Fatalf("content type %q", w.Header().Get("Content-Type"))
	}
	if n := strings.Count(w.Body.String(), "--frame"); n < 1 {
		t.Errorf("got %d parts", n)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream.mjpg?fps=0", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("fps=0: status %d", w.Code)
	}
}

func TestStreamOutlivesWriteTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cam := &stubCamera{img: image.NewYCbCr(image.Rect(0, 0, 16, 16), image.YCbCrSubsampleRatio420)}
	hs := NewHTTPServer("", cam, zaptest.NewLogger(t))
	ts := httptest.NewUnstartedServer(hs.Handler)
	ts.Config.WriteTimeout = 50 * time.Millisecond
	ts.Start()
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream.mjpg?fps=50", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	mr := multipart.NewReader(resp.Body, "frame")
	start := time.Now()
	parts := 0
	for time.Since(start) < 300*time.Millisecond {
		p, err := mr.NextPart()
		if err != nil {
			t.Fatalf("stream ended after %v and %d parts: %v", time.Since(start), parts, err)
		}
		if _, err := io.Copy(io.Discard, p); err != nil {
			t.Fatal(err)
		}
		parts++
	}
	cancel()
}
