package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jpegFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 14))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type fakeRunner struct {
	out   []byte
	err   error
	calls [][]string
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.out, r.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock                   { return &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)} }
func newSampler(r *fakeRunner, c *clock) *Sampler {
	return New("ffmpeg", r, testLogger(), WithClock(c.now))
}

func TestMaybeSampleFirstCallSamples(t *testing.T) {
	r := &fakeRunner{out: jpegFrame(t)}
	c := newClock()
	s := newSampler(r, c)

	var last time.Time
	data, ok := s.MaybeSample(context.Background(), "in.mov", 12.5, &last)
	if !ok || len(data) == 0 {
		t.Fatal("first call should sample")
	}
	if !last.Equal(c.t) {
		t.Errorf("last = %v, want %v", last, c.t)
	}
	if len(r.calls) != 1 || r.calls[0][0] != "ffmpeg" || !slices.Contains(r.calls[0], "12.5") {
		t.Errorf("unexpected invocation: %q", r.calls)
	}
	if !slices.Contains(r.calls[0], "scale=240:-1") {
		t.Errorf("default width not applied: %q", r.calls[0])
	}
}

func TestMaybeSampleRespectsInterval(t *testing.T) {
	r := &fakeRunner{out: jpegFrame(t)}
	c := newClock()
	s := newSampler(r, c)

	last := c.t
	c.advance(DefaultMinInterval - time.Millisecond)
	if _, ok := s.MaybeSample(context.Background(), "in.mov", 1, &last); ok {
		t.Fatal("should not sample before the interval elapses")
	}
	if len(r.calls) != 0 {
		t.Fatalf("runner called %d times before interval", len(r.calls))
	}

	c.advance(time.Millisecond)
	if _, ok := s.MaybeSample(context.Background(), "in.mov", 1, &last); !ok {
		t.Fatal("should sample once the interval elapsed")
	}
}

func TestMaybeSampleFailuresUpdateLast(t *testing.T) {
	tests := []struct {
		name string
		r    *fakeRunner
	}{
		{"runner error", &fakeRunner{err: errors.New("exit status 1")}},
		{"empty output", &fakeRunner{}},
		{"corrupt bytes", &fakeRunner{out: []byte("not an image")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClock()
			s := newSampler(tt.r, c)

			var last time.Time
			data, ok := s.MaybeSample(context.Background(), "in.mov", 5, &last)
			if ok || data != nil {
				t.Fatal("failed extraction should report nothing")
			}
			if !last.Equal(c.t) {
				t.Errorf("last should be updated on failure, got %v", last)
			}

			// Immediately retrying is throttled.
			if _, ok := s.MaybeSample(context.Background(), "in.mov", 6, &last); ok {
				t.Error("retry should be throttled")
			}
			if len(tt.r.calls) != 1 {
				t.Errorf("runner called %d times, want 1", len(tt.r.calls))
			}
		})
	}
}

func TestOptions(t *testing.T) {
	r := &fakeRunner{out: jpegFrame(t)}
	s := New("ff", r, testLogger(), WithMinInterval(time.Second), WithWidth(320), WithMinInterval(0), WithWidth(-1))
	if s.MinInterval() != time.Second {
		t.Errorf("MinInterval = %v, want 1s", s.MinInterval())
	}

	var last time.Time
	s.MaybeSample(context.Background(), "in.mov", 0, &last)
	if !slices.Contains(r.calls[0], "scale=320:-1") {
		t.Errorf("width option not applied: %q", r.calls[0])
	}
}
