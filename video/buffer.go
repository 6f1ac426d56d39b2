// Package video owns the three parallel frame sequences a processing run
// works on: the original color frames plus the binary and edge masks the
// pipeline fills in frame by frame. The same buffer doubles as the
// debug-overlay canvas, so it is loaded once, mutated by exactly one
// processing loop and saved at the end of the run.
package video

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gocv.io/x/gocv"
)

// ErrColorDepth is returned when the input video does not decode to
// 3-channel color frames. It is a non-recoverable precondition checked
// before any processing starts.
var ErrColorDepth = errors.New("input video must have 3 color channels")

// fallbackFPS is used for writing when the container reports no frame rate.
const fallbackFPS = 25

// Plane selects one of the three frame sequences.
type Plane int

const (
	// PlaneOriginal is the color source, darkened and overlaid during a run.
	PlaneOriginal Plane = iota
	// PlaneBinary is the per-frame segmentation mask.
	PlaneBinary
	// PlaneEdges is the per-frame edge mask.
	PlaneEdges
)

// Buffer holds the whole video in memory as three index-aligned Mat
// sequences sharing frame count and extent. It is exclusively owned by a
// single processing loop; no concurrent access is permitted during a run.
type Buffer struct {
	original []gocv.Mat
	binary   []gocv.Mat
	edges    []gocv.Mat

	rows, cols int
	fps        float64
}

// NewBuffer wraps already decoded frames into a buffer and allocates
// zero-filled mask planes of the same extent. The buffer takes ownership
// of the frames. Fails on an empty sequence or non-3-channel frames.
func NewBuffer(frames []gocv.Mat, fps float64) (*Buffer, error) {

	if len(frames) == 0 {
		return nil, errors.New("video contains no frames")
	}

	if frames[0].Channels() != 3 {
		return nil, fmt.Errorf("%w, got %d", ErrColorDepth, frames[0].Channels())
	}

	if fps <= 0 {
		fps = fallbackFPS
	}

	b := &Buffer{
		original: frames,
		binary:   make([]gocv.Mat, len(frames)),
		edges:    make([]gocv.Mat, len(frames)),
		rows:     frames[0].Rows(),
		cols:     frames[0].Cols(),
		fps:      fps,
	}

	for i := range frames {
		b.binary[i] = gocv.NewMatWithSize(b.rows, b.cols, gocv.MatTypeCV8U)
		b.binary[i].SetTo(gocv.NewScalar(0, 0, 0, 0))

		b.edges[i] = gocv.NewMatWithSize(b.rows, b.cols, gocv.MatTypeCV8U)
		b.edges[i].SetTo(gocv.NewScalar(0, 0, 0, 0))
	}

	return b, nil
}

// Load reads a whole video file into memory. The frame sequence is decoded
// up front because the tracker revisits frames as its working state.
func Load(path string, log *slog.Logger) (*Buffer, error) {

	vc, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	defer vc.Close()

	fps := vc.Get(gocv.VideoCaptureFPS)

	frames := make([]gocv.Mat, 0)

	for {
		img := gocv.NewMat()

		if ok := vc.Read(&img); !ok {
			img.Close()
			break
		}

		if img.Empty() {
			img.Close()
			continue
		}

		frames = append(frames, img)
	}

	buf, err := NewBuffer(frames, fps)

	if err != nil {
		for i := range frames {
			frames[i].Close()
		}
		return nil, err
	}

	log.Info("loaded video",
		"frames", buf.Frames(), "rows", buf.Rows(), "cols", buf.Cols())

	return buf, nil
}

// Frames returns the number of frames in the sequence.
func (b *Buffer) Frames() int { return len(b.original) }

// Rows returns the frame height.
func (b *Buffer) Rows() int { return b.rows }

// Cols returns the frame width.
func (b *Buffer) Cols() int { return b.cols }

// FPS returns the frame rate used when writing output.
func (b *Buffer) FPS() float64 { return b.fps }

// Original returns the color frame at index i. The Mat header shares the
// underlying pixels, writes through it mutate the buffer.
func (b *Buffer) Original(i int) gocv.Mat { return b.original[i] }

// Binary returns the segmentation mask frame at index i.
func (b *Buffer) Binary(i int) gocv.Mat { return b.binary[i] }

// Edges returns the edge mask frame at index i.
func (b *Buffer) Edges(i int) gocv.Mat { return b.edges[i] }

// Close releases all frames.
func (b *Buffer) Close() {
	for i := range b.original {
		b.original[i].Close()
		b.binary[i].Close()
		b.edges[i].Close()
	}
}

// Save writes one plane of the buffer to path. Mask planes are converted
// to BGR so every output is an ordinary color video.
func (b *Buffer) Save(path string, plane Plane, log *slog.Logger) error {

	log.Info("saving", "path", path)

	writer, err := gocv.VideoWriterFile(
		path, "MJPG", b.fps, b.cols, b.rows, true)

	if err != nil {
		return fmt.Errorf("opening writer for %s: %w", path, err)
	}

	defer writer.Close()

	if !writer.IsOpened() {
		return fmt.Errorf("video writer failed to open %s", path)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i < b.Frames(); i++ {
		src := b.frameOf(plane, i)

		if src.Channels() == 1 {
			gocv.CvtColor(src, &frame, gocv.ColorGrayToBGR)
			src = frame
		}

		if err := writer.Write(src); err != nil {
			return fmt.Errorf("writing frame %d to %s: %w", i, path, err)
		}
	}

	return nil
}

// SaveAll writes the overlaid original to path and the two mask planes to
// sibling paths tagged "binary" and "edges".
func (b *Buffer) SaveAll(path string, log *slog.Logger) error {

	if err := b.Save(SiblingPath(path, "binary"), PlaneBinary, log); err != nil {
		return err
	}

	if err := b.Save(SiblingPath(path, "edges"), PlaneEdges, log); err != nil {
		return err
	}

	return b.Save(path, PlaneOriginal, log)
}

func (b *Buffer) frameOf(plane Plane, i int) gocv.Mat {
	switch plane {
	case PlaneBinary:
		return b.binary[i]
	case PlaneEdges:
		return b.edges[i]
	default:
		return b.original[i]
	}
}

// SiblingPath inserts tag before the file extension: ("out.avi", "binary")
// becomes "out.binary.avi". A path without extension gets the tag appended.
func SiblingPath(path, tag string) string {

	dot := strings.LastIndex(path, ".")

	if dot < 0 {
		return path + "." + tag
	}

	return path[:dot] + "." + tag + path[dot:]
}
