// Command college-cv detects yield signs in a video. The whole file is
// loaded into memory, every frame is scanned for sign-shaped regions and
// the result is written back out with a debug overlay showing each tracked
// region and its remaining health.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dreadworks/college-cv/config"
	"github.com/dreadworks/college-cv/pipeline"
	"github.com/dreadworks/college-cv/render"
	"github.com/dreadworks/college-cv/tracker"
	"github.com/dreadworks/college-cv/video"
)

// args is the validated command line surface.
type args struct {
	fIn, fOut string
	config    string
	binary    bool
	edges     bool
	saveAll   bool
}

func (a args) mode() tracker.Mode {
	switch {
	case a.binary:
		return tracker.ModeBinaryOnly
	case a.edges:
		return tracker.ModeEdgesOnly
	default:
		return tracker.ModeFull
	}
}

// validate rejects flag combinations that make no sense together.
func (a args) validate() error {

	if a.binary && a.edges {
		return errors.New("either provide -edges or -binary")
	}

	if a.saveAll && (a.binary || a.edges) {
		return errors.New("you can not save-all when using -edges or -binary")
	}

	return nil
}

func parseArgs() args {

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"usage: %s [flags] input output\n", os.Args[0])
		flag.PrintDefaults()
	}

	cfgPath := flag.String("config", "", "configuration file")
	binary := flag.Bool("binary", false,
		"only apply segmentation and morphology")
	edges := flag.Bool("edges", false,
		"only apply -binary and edge detection")
	saveAll := flag.Bool("save-all", false,
		"save not only the result but all intermediate steps")

	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "provide an input and an output file")
		flag.Usage()
		os.Exit(2)
	}

	a := args{
		fIn:     flag.Arg(0),
		fOut:    flag.Arg(1),
		config:  *cfgPath,
		binary:  *binary,
		edges:   *edges,
		saveAll: *saveAll,
	}

	if err := a.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	return a
}

func main() {
	os.Exit(run(parseArgs()))
}

func run(a args) int {

	log := NewLogger(slog.LevelInfo)
	log.Info("starting the application")

	cfg := config.Default()

	if a.config != "" {
		var err error
		cfg, err = config.Load(a.config)

		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	buf, err := video.Load(a.fIn, log)

	if err != nil {
		if errors.Is(err, video.ErrColorDepth) {
			fmt.Fprintln(os.Stderr, "You need to provide a colored video!")
			return 2
		}

		log.Error("loading video failed", "error", err)
		return 1
	}

	defer buf.Close()

	pipe := pipeline.New(cfg, a.mode(), log)
	defer pipe.Close()

	if err := process(buf, pipe, log); err != nil {
		log.Error("processing failed", "error", err)
		return 1
	}

	if err := save(buf, a, log); err != nil {
		log.Error("saving failed", "error", err)
		return 1
	}

	return 0
}

// process runs the tracker over every frame in order and draws the debug
// overlay. The buffer is exclusively owned by this loop: each frame
// consumes the region list the previous frame produced, so there is no
// frame-level parallelism.
func process(buf *video.Buffer, pipe tracker.Pipeline, log *slog.Logger) error {

	log.Info("start processing")

	tr := tracker.New(pipe, log)

	var stats strings.Builder
	start := time.Now()

	for i := 0; i < buf.Frames(); i++ {

		carried := tr.Active()

		// one character per frame: active region count, or a dot
		if n := len(carried); n > 0 {
			fmt.Fprintf(&stats, "%d", n)
		} else {
			stats.WriteByte('.')
		}

		original := buf.Original(i)
		binary := buf.Binary(i)
		edges := buf.Edges(i)

		drawList, err := tr.Process(i, original, binary, edges)

		if err != nil {
			return err
		}

		// stamp the scanned regions onto the mask planes now that the
		// backend has seen the clean masks
		for _, roi := range carried {
			render.Marker(&binary, roi, render.White)
			render.Marker(&edges, roi, render.White)
		}

		render.Darken(&original)

		for _, roi := range drawList {
			render.Triangle(&original, roi)
			render.Marker(&original, roi, render.White)
		}
	}

	fmt.Printf("\n%s\n\n", stats.String())

	log.Info("processing finished",
		"frames", buf.Frames(), "took", time.Since(start))

	return nil
}

func save(buf *video.Buffer, a args, log *slog.Logger) error {
	switch {
	case a.saveAll:
		return buf.SaveAll(a.fOut, log)
	case a.edges:
		return buf.Save(a.fOut, video.PlaneEdges, log)
	case a.binary:
		return buf.Save(a.fOut, video.PlaneBinary, log)
	default:
		return buf.Save(a.fOut, video.PlaneOriginal, log)
	}
}
