package motion

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
)

func recordingStage(name string, trace *[]string) Stage[fakeFrame] {
	return StageFunc[fakeFrame](func(src fakeFrame) (fakeFrame, error) {
		*trace = append(*trace, name)
		out := src.Clone()
		out.tag = src.tag + name + ";"
		return out, nil
	})
}

func TestTransformOrder(t *testing.T) {
	live := &atomic.Int64{}
	var trace []string
	set := &TransformSet[fakeFrame]{
		Perspective: recordingStage("perspective", &trace),
		Undistort:   recordingStage("undistort", &trace),
		Reorient:    recordingStage("reorient", &trace),
	}
	out, err := set.Correct(newFakeFrame(1, live))
	if err != nil {
		t.Fatal(err)
	}
	if out.tag != "undistort;reorient;perspective;" {
		t.Errorf("Wrong stage order: %q", out.tag)
	}
	out.Close()
	if n := live.Load(); n != 0 {
		t.Errorf("Intermediate frames leaked: %d live", n)
	}
}

func TestTransformSkipsUnsetStages(t *testing.T) {
	var trace []string
	set := &TransformSet[fakeFrame]{
		Reorient: recordingStage("reorient", &trace),
	}
	out, err := set.Correct(newFakeFrame(1, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(trace) != 1 || trace[0] != "reorient" {
		t.Errorf("Only reorient should run, got %v", trace)
	}
	if out.tag != "reorient;" {
		t.Errorf("Wrong output: %q", out.tag)
	}

	var empty *TransformSet[fakeFrame]
	raw := newFakeFrame(3, nil)
	same, err := empty.Correct(raw)
	if err != nil || same.no != 3 || same.tag != "" {
		t.Errorf("Nil transform set should pass frames through, got %+v, %v", same, err)
	}
	if empty.ScaleFactor() != 1.0 {
		t.Errorf("Default scale should be 1")
	}
}

func TestTransformStageError(t *testing.T) {
	live := &atomic.Int64{}
	boom := errors.New("boom")
	set := &TransformSet[fakeFrame]{
		Undistort: StageFunc[fakeFrame](func(src fakeFrame) (fakeFrame, error) {
			return src.Clone(), nil
		}),
		Reorient: StageFunc[fakeFrame](func(src fakeFrame) (fakeFrame, error) {
			return fakeFrame{}, boom
		}),
	}
	_, err := set.Correct(newFakeFrame(1, live))
	if !errors.Is(err, boom) {
		t.Errorf("Expected stage error, got %v", err)
	}
	if n := live.Load(); n != 0 {
		t.Errorf("Frames leaked on error: %d live", n)
	}
}

type closingStage struct {
	closed *int
}

func (stage closingStage) Apply(src fakeFrame) (fakeFrame, error) {
	return src.Clone(), nil
}

func (stage closingStage) Close() error {
	*stage.closed++
	return nil
}

func TestTransformClose(t *testing.T) {
	closed := 0
	var trace []string
	set := &TransformSet[fakeFrame]{
		Undistort:   closingStage{closed: &closed},
		Reorient:    recordingStage("reorient", &trace),
		Perspective: closingStage{closed: &closed},
	}
	if err := set.Close(); err != nil {
		t.Fatal(err)
	}
	if closed != 2 {
		t.Errorf("Closeable stages closed: %d, expected: %d", closed, 2)
	}
	var empty *TransformSet[fakeFrame]
	if err := empty.Close(); err != nil {
		t.Errorf("Closing nil set: %v", err)
	}
}

func TestParseOrientation(t *testing.T) {
	for _, s := range []string{"0", "90", "180", "270"} {
		if r, err := ParseRotation(s); err != nil || string(r) != s {
			t.Errorf("ParseRotation(%q) = %q, %v", s, r, err)
		}
	}
	if _, err := ParseRotation("45"); err == nil {
		t.Errorf("ParseRotation should reject 45")
	}
	for _, s := range []string{"no_flip", "h_flip", "v_flip", "hv_flip"} {
		if f, err := ParseFlip(s); err != nil || string(f) != s {
			t.Errorf("ParseFlip(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFlip("diagonal"); err == nil || err.Error() != "unknown flip 'diagonal'" {
		t.Errorf("ParseFlip should reject diagonal, got %v", err)
	}
	if !(Orientation{Rotation: Rotate0, Flip: NoFlip}).IsIdentity() {
		t.Errorf("0/no_flip should be identity")
	}
	if (Orientation{Rotation: Rotate90, Flip: NoFlip}).IsIdentity() {
		t.Errorf("90/no_flip should not be identity")
	}
}
