package fabrik

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

// scriptStep represents a single action in a target script.
type scriptStep struct {
	Action   string  `json:"action"`
	Effector int     `json:"effector,omitempty"` // index into Frame.Effectors
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Z        float64 `json:"z,omitempty"`
	Frames   int     `json:"frames,omitempty"`
}

// targetScript is the top-level JSON structure for a target script.
type targetScript struct {
	Steps []scriptStep `json:"steps"`
}

// TargetScript sequences end-effector target changes across frames for
// deterministic playback: benchmarks, demos and regression tests.
//
// Actions: "move" sets a target, "tween" moves it linearly over Frames
// frames, "wait" holds for Frames frames.
type TargetScript struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool

	tween    *TargetTween
	tweenEff EndEffector
	tweenIdx int
}

// LoadTargetScript parses a JSON target script.
func LoadTargetScript(jsonData []byte) (*TargetScript, error) {
	var script targetScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse target script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse target script: no steps")
	}
	for i, st := range script.Steps {
		switch st.Action {
		case "move", "tween", "wait":
		default:
			return nil, fmt.Errorf("parse target script: step %d: unknown action %q", i, st.Action)
		}
		if st.Effector < 0 {
			return nil, fmt.Errorf("parse target script: step %d: negative effector index", i)
		}
	}
	return &TargetScript{steps: script.Steps}, nil
}

// Done reports whether all steps in the script have been executed.
func (sc *TargetScript) Done() bool {
	return sc.done
}

// Step advances the script by one frame, writing targets into
// frame.Effectors. Steps naming an effector index the frame does not have
// are skipped.
func (sc *TargetScript) Step(frame *Frame) {
	if sc.done {
		return
	}
	if sc.tween != nil {
		sc.advanceTween(frame)
		sc.checkDone()
		return
	}
	// Count down wait frames.
	if sc.waitCount > 0 {
		sc.waitCount--
		sc.checkDone()
		return
	}
	if sc.cursor >= len(sc.steps) {
		sc.done = true
		return
	}

	st := sc.steps[sc.cursor]
	sc.cursor++
	to := mgl64.Vec3{st.X, st.Y, st.Z}
	valid := st.Effector < len(frame.Effectors)

	switch st.Action {
	case "move":
		if valid {
			frame.Effectors[st.Effector].Target = to
		}
	case "tween":
		if valid {
			frames := st.Frames
			if frames < 1 {
				frames = 1
			}
			sc.tweenEff = frame.Effectors[st.Effector]
			sc.tweenIdx = st.Effector
			sc.tween = TweenTarget(&sc.tweenEff, to, float32(frames), ease.Linear)
			sc.advanceTween(frame)
		}
	case "wait":
		if st.Frames > 0 {
			sc.waitCount = st.Frames - 1 // this frame counts as one
		}
	}
	sc.checkDone()
}

// advanceTween moves the running tween by one frame and copies its value
// into the frame.
func (sc *TargetScript) advanceTween(frame *Frame) {
	sc.tween.Update(1)
	if sc.tweenIdx < len(frame.Effectors) {
		frame.Effectors[sc.tweenIdx].Target = sc.tweenEff.Target
	}
	if sc.tween.Done {
		sc.tween = nil
	}
}

// checkDone marks the script finished once the last step has fully played.
func (sc *TargetScript) checkDone() {
	if sc.cursor >= len(sc.steps) && sc.waitCount == 0 && sc.tween == nil {
		sc.done = true
	}
}
