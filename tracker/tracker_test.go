package tracker

import (
	"io"
	"log/slog"
	"testing"

	"gocv.io/x/gocv"
)

const (
	testRows = 120
	testCols = 160
)

// fakeDet is a scripted detection: barycenter and vertices in coordinates
// local to the scanned region.
type fakeDet struct {
	bary  Point
	verts [3]Point
}

// scriptedPipeline returns canned detections instead of running vision
// code. Full and restricted scans are told apart by the scanned extent.
type scriptedPipeline struct {
	mode Mode

	// detections handed out on the next full / restricted detect call
	fullDets       []fakeDet
	restrictedDets []fakeDet

	fullBinarize int
	roiBinarize  int
	edgeCalls    int
	detectCalls  int
}

func (s *scriptedPipeline) Binarize(region gocv.Mat) (gocv.Mat, error) {

	if region.Rows() == testRows && region.Cols() == testCols {
		s.fullBinarize++
	} else {
		s.roiBinarize++
	}

	m := gocv.NewMatWithSize(region.Rows(), region.Cols(), gocv.MatTypeCV8U)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))

	return m, nil
}

func (s *scriptedPipeline) Edge(binary gocv.Mat) (gocv.Mat, error) {

	s.edgeCalls++

	m := gocv.NewMatWithSize(binary.Rows(), binary.Cols(), gocv.MatTypeCV8U)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))

	return m, nil
}

func (s *scriptedPipeline) Detect(edges, binary gocv.Mat) ([]Detection, PointsOfInterest, error) {

	s.detectCalls++

	script := s.restrictedDets

	if edges.Rows() == testRows && edges.Cols() == testCols {
		script = s.fullDets
	}

	pois := NewPointsOfInterest()
	var dets []Detection

	for n, f := range script {
		keys := [3]LineKey{
			LineKey(3 * n),
			LineKey(3*n + 1),
			LineKey(3*n + 2),
		}

		pois.Set(keys[0], keys[1], f.verts[0])
		pois.Set(keys[0], keys[2], f.verts[1])
		pois.Set(keys[1], keys[2], f.verts[2])

		dets = append(dets, Detection{Keys: keys, Barycenter: f.bary})
	}

	return dets, pois, nil
}

func (s *scriptedPipeline) Mode() Mode { return s.mode }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testFrames allocates one frame triple of the test extent.
func testFrames(t *testing.T) (original, binary, edges gocv.Mat) {
	t.Helper()

	original = gocv.NewMatWithSize(testRows, testCols, gocv.MatTypeCV8UC3)
	binary = gocv.NewMatWithSize(testRows, testCols, gocv.MatTypeCV8U)
	edges = gocv.NewMatWithSize(testRows, testCols, gocv.MatTypeCV8U)

	t.Cleanup(func() {
		original.Close()
		binary.Close()
		edges.Close()
	})

	return original, binary, edges
}

// fullDet is the canned full-scan detection used across tests: barycenter
// (60, 60), chebyshev reach 10, so the resulting box spans rows and cols
// [40, 80).
func fullDet() fakeDet {
	return fakeDet{
		bary: Point{Row: 60, Col: 60},
		verts: [3]Point{
			{Row: 50, Col: 60},
			{Row: 70, Col: 50},
			{Row: 70, Col: 70},
		},
	}
}

// reconfirmDet is fullDet in coordinates local to its own box, so a
// restricted scan re-detects the region in place.
func reconfirmDet() fakeDet {
	return fakeDet{
		bary: Point{Row: 20, Col: 20},
		verts: [3]Point{
			{Row: 10, Col: 20},
			{Row: 30, Col: 10},
			{Row: 30, Col: 30},
		},
	}
}

func TestFullScanCadence(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	pipe.fullDets = []fakeDet{fullDet()}
	pipe.restrictedDets = []fakeDet{reconfirmDet()}

	var fullScanFrames []int

	for i := 0; i < 40; i++ {
		before := pipe.fullBinarize

		if _, err := tr.Process(i, original, binary, edges); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}

		if pipe.fullBinarize > before {
			fullScanFrames = append(fullScanFrames, i)
		}

		if len(tr.Active()) == 0 {
			t.Fatalf("frame %d: region list unexpectedly empty", i)
		}
	}

	// the region list never runs empty, so full scans happen exactly on
	// the cadence
	want := []int{0, 15, 30}

	if len(fullScanFrames) != len(want) {
		t.Fatalf("full scans at %v, want %v", fullScanFrames, want)
	}

	for n := range want {
		if fullScanFrames[n] != want[n] {
			t.Fatalf("full scans at %v, want %v", fullScanFrames, want)
		}
	}
}

func TestFullScanWhenEmpty(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	// nothing is ever detected: every frame falls back to a full scan
	for i := 0; i < 5; i++ {
		if _, err := tr.Process(i, original, binary, edges); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	if pipe.fullBinarize != 5 {
		t.Errorf("full scans = %d, want 5", pipe.fullBinarize)
	}

	if pipe.roiBinarize != 0 {
		t.Errorf("restricted scans = %d, want 0", pipe.roiBinarize)
	}
}

func TestHealthDecay(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	// frame 0 yields one detection, frames 1..14 yield none inside the
	// region's sub-frame
	pipe.fullDets = []fakeDet{fullDet()}

	draw, err := tr.Process(0, original, binary, edges)

	if err != nil {
		t.Fatal(err)
	}

	if len(draw) != 1 || draw[0].Health() != Lifespan {
		t.Fatalf("frame 0: draw list %v", draw)
	}

	pipe.fullDets = nil

	for i := 1; i <= 14; i++ {
		draw, err = tr.Process(i, original, binary, edges)

		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}

		if len(draw) != 1 {
			t.Fatalf("frame %d: %d regions, want 1", i, len(draw))
		}

		if got, want := draw[0].Health(), Lifespan-i; got != want {
			t.Fatalf("frame %d: health = %d, want %d", i, got, want)
		}
	}

	if draw[0].Dead() {
		t.Error("region died before its lifespan ran out")
	}
}

func TestReconfirmationReplacesRegion(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	pipe.fullDets = []fakeDet{fullDet()}

	if _, err := tr.Process(0, original, binary, edges); err != nil {
		t.Fatal(err)
	}

	seed := tr.Active()[0]
	pipe.fullDets = nil

	// five misses wear the region down
	for i := 1; i <= 5; i++ {
		if _, err := tr.Process(i, original, binary, edges); err != nil {
			t.Fatal(err)
		}
	}

	if got := tr.Active()[0].Health(); got != Lifespan-5 {
		t.Fatalf("health before reconfirmation = %d, want %d", got, Lifespan-5)
	}

	// frame 6 re-confirms inside the sub-region
	pipe.restrictedDets = []fakeDet{reconfirmDet()}

	draw, err := tr.Process(6, original, binary, edges)

	if err != nil {
		t.Fatal(err)
	}

	pipe.restrictedDets = nil

	if len(draw) != 1 {
		t.Fatalf("draw list has %d regions, want 1", len(draw))
	}

	got := draw[0]

	if got == seed {
		t.Error("reconfirmation mutated the region instead of replacing it")
	}

	if got.Health() != Lifespan {
		t.Errorf("replacement health = %d, want %d", got.Health(), Lifespan)
	}

	// vertices are local to the box at rows/cols [40, 80) and must come
	// back translated into frame coordinates
	want := [3]Point{
		{Row: 50, Col: 60},
		{Row: 70, Col: 50},
		{Row: 70, Col: 70},
	}

	if got.Vertices() != want {
		t.Errorf("vertices = %v, want %v", got.Vertices(), want)
	}
}

func TestFullScanFirstAcceptedWins(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	overlapping := fullDet()
	overlapping.bary = Point{Row: 65, Col: 65}
	for n := range overlapping.verts {
		overlapping.verts[n] = overlapping.verts[n].Add(Point{Row: 5, Col: 5})
	}

	disjoint := fakeDet{
		bary: Point{Row: 60, Col: 130},
		verts: [3]Point{
			{Row: 50, Col: 130},
			{Row: 70, Col: 120},
			{Row: 70, Col: 140},
		},
	}

	pipe.fullDets = []fakeDet{fullDet(), overlapping, disjoint}

	draw, err := tr.Process(0, original, binary, edges)

	if err != nil {
		t.Fatal(err)
	}

	// the second detection overlaps the first and is dropped, the third
	// is far enough away to survive
	if len(draw) != 2 {
		t.Fatalf("draw list has %d regions, want 2", len(draw))
	}

	if draw[0].Vertices() != fullDet().verts {
		t.Errorf("first accepted region has vertices %v", draw[0].Vertices())
	}

	if draw[1].Vertices() != disjoint.verts {
		t.Errorf("second accepted region has vertices %v", draw[1].Vertices())
	}
}

func TestRestrictedScanTakesFirstDetectionOnly(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	pipe.fullDets = []fakeDet{fullDet()}

	if _, err := tr.Process(0, original, binary, edges); err != nil {
		t.Fatal(err)
	}

	pipe.fullDets = nil

	second := reconfirmDet()
	second.bary = Point{Row: 15, Col: 15}

	pipe.restrictedDets = []fakeDet{reconfirmDet(), second}

	draw, err := tr.Process(1, original, binary, edges)

	if err != nil {
		t.Fatal(err)
	}

	if len(draw) != 1 {
		t.Fatalf("draw list has %d regions, want 1", len(draw))
	}

	// only the first reported detection replaces the region
	want := [3]Point{
		{Row: 50, Col: 60},
		{Row: 70, Col: 50},
		{Row: 70, Col: 70},
	}

	if draw[0].Vertices() != want {
		t.Errorf("vertices = %v, want %v", draw[0].Vertices(), want)
	}
}

func TestDeadRegionDrawnOnceThenDropped(t *testing.T) {

	pipe := &scriptedPipeline{}
	tr := New(pipe, discardLogger())
	original, binary, edges := testFrames(t)

	seed := makeROI(40, 80, 40, 80)
	seed.health = 1
	seed.frameRows = testRows
	seed.frameCols = testCols
	tr.active = []*ROI{seed}

	// frame 1: the miss punishes the region to zero, it stays in the
	// draw list exactly once
	draw, err := tr.Process(1, original, binary, edges)

	if err != nil {
		t.Fatal(err)
	}

	if len(draw) != 1 || !draw[0].Dead() {
		t.Fatalf("draw list = %v, want the dying region", draw)
	}

	if len(tr.Active()) != 0 {
		t.Fatal("dead region carried into the next frame's active list")
	}

	// frame 2: the empty list triggers a full scan, nothing resurrects
	draw, err = tr.Process(2, original, binary, edges)

	if err != nil {
		t.Fatal(err)
	}

	if len(draw) != 0 {
		t.Errorf("draw list has %d regions, want 0", len(draw))
	}
}

func TestModeShortCircuits(t *testing.T) {

	tests := []struct {
		name      string
		mode      Mode
		wantEdges int
	}{
		{name: "binary only", mode: ModeBinaryOnly, wantEdges: 0},
		{name: "edges only", mode: ModeEdgesOnly, wantEdges: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {

			pipe := &scriptedPipeline{mode: tt.mode}
			pipe.fullDets = []fakeDet{fullDet()}

			tr := New(pipe, discardLogger())
			original, binary, edges := testFrames(t)

			for i := 0; i < 3; i++ {
				if _, err := tr.Process(i, original, binary, edges); err != nil {
					t.Fatalf("frame %d: %v", i, err)
				}
			}

			// short-circuit modes never detect, so the region list stays
			// empty and every frame is a full scan
			if pipe.detectCalls != 0 {
				t.Errorf("detect calls = %d, want 0", pipe.detectCalls)
			}

			if pipe.edgeCalls != tt.wantEdges {
				t.Errorf("edge calls = %d, want %d", pipe.edgeCalls, tt.wantEdges)
			}

			if pipe.fullBinarize != 3 {
				t.Errorf("full scans = %d, want 3", pipe.fullBinarize)
			}

			if len(tr.Active()) != 0 {
				t.Errorf("active list has %d regions, want 0", len(tr.Active()))
			}
		})
	}
}
