package fabrik

import (
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func scriptFrame() *Frame {
	return &Frame{Effectors: []EndEffector{{Joint: 1}, {Joint: 2}}}
}

func TestLoadTargetScript(t *testing.T) {
	data := []byte(`{
		"steps": [
			{"action": "move", "effector": 1, "x": 1, "y": 2, "z": 3},
			{"action": "tween", "x": 4, "frames": 8},
			{"action": "wait", "frames": 3}
		]
	}`)

	sc, err := LoadTargetScript(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sc.steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(sc.steps))
	}
	if st := sc.steps[0]; st.Action != "move" || st.Effector != 1 || st.Z != 3 {
		t.Errorf("step 0 mismatch: %+v", st)
	}
	if st := sc.steps[1]; st.Action != "tween" || st.Effector != 0 || st.Frames != 8 {
		t.Errorf("step 1 mismatch: %+v", st)
	}
	if st := sc.steps[2]; st.Action != "wait" || st.Frames != 3 {
		t.Errorf("step 2 mismatch: %+v", st)
	}
}

func TestLoadTargetScript_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":        `not json`,
		"empty":           `{"steps": []}`,
		"unknown action":  `{"steps": [{"action": "click"}]}`,
		"negative target": `{"steps": [{"action": "move", "effector": -1}]}`,
	}
	for name, data := range cases {
		if _, err := LoadTargetScript([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestTargetScriptMove(t *testing.T) {
	sc, _ := LoadTargetScript([]byte(`{"steps": [{"action": "move", "effector": 1, "x": 5, "y": 6, "z": 7}]}`))
	f := scriptFrame()

	sc.Step(f)

	assertVec3(t, "target", f.Effectors[1].Target, mgl64.Vec3{5, 6, 7}, 0)
	assertVec3(t, "other target", f.Effectors[0].Target, mgl64.Vec3{}, 0)
	if !sc.Done() {
		t.Error("script should be done after its only step")
	}
}

func TestTargetScriptTween(t *testing.T) {
	sc, _ := LoadTargetScript([]byte(`{"steps": [{"action": "tween", "x": 8, "frames": 4}]}`))
	f := scriptFrame()

	sc.Step(f)
	assertNear(t, "frame 1", f.Effectors[0].Target.X(), 2)
	sc.Step(f)
	assertNear(t, "frame 2", f.Effectors[0].Target.X(), 4)
	if sc.Done() {
		t.Fatal("done halfway through a tween")
	}
	sc.Step(f)
	sc.Step(f)
	assertNear(t, "frame 4", f.Effectors[0].Target.X(), 8)
	if !sc.Done() {
		t.Error("script should be done once the tween lands")
	}
}

func TestTargetScriptWait(t *testing.T) {
	sc, _ := LoadTargetScript([]byte(`{"steps": [{"action": "wait", "frames": 3}]}`))
	f := scriptFrame()

	for i := 0; i < 2; i++ {
		sc.Step(f)
		if sc.Done() {
			t.Fatalf("done after %d of 3 wait frames", i+1)
		}
	}
	sc.Step(f)
	if !sc.Done() {
		t.Error("script should be done after 3 wait frames")
	}
}

func TestTargetScriptSkipsMissingEffector(t *testing.T) {
	sc, _ := LoadTargetScript([]byte(`{"steps": [
		{"action": "move", "effector": 7, "x": 1},
		{"action": "tween", "effector": 9, "x": 1, "frames": 5}
	]}`))
	f := scriptFrame()

	sc.Step(f)
	sc.Step(f)

	if !sc.Done() {
		t.Error("steps for missing effectors should be skipped")
	}
	for _, e := range f.Effectors {
		assertVec3(t, "target", e.Target, mgl64.Vec3{}, 0)
	}
}

func TestTargetScriptDrivesSolver(t *testing.T) {
	data, err := os.ReadFile("testdata/wave.json")
	if err != nil {
		t.Fatal(err)
	}
	sc, err := LoadTargetScript(data)
	if err != nil {
		t.Fatal(err)
	}
	rig, err := LoadRigFile("testdata/arm.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f := rig.Frame()
	s, _ := newTestSolver(SolverConfig{})

	frames := 0
	for !sc.Done() && frames < 1000 {
		sc.Step(f)
		out, err := s.Solve(f)
		if err != nil {
			t.Fatalf("frame %d: %v", frames, err)
		}
		if len(out.Reports) != 1 || out.Reports[0].Err != nil {
			t.Fatalf("frame %d: reports %+v", frames, out.Reports)
		}
		frames++
	}
	if frames != 76 {
		t.Errorf("script ran %d frames, want 76", frames)
	}
	assertVec3(t, "final left target", f.Effectors[0].Target, mgl64.Vec3{-6, 12, 0}, 0)
	assertVec3(t, "final right target", f.Effectors[1].Target, mgl64.Vec3{8, 14, 0}, 1e-5)
}
