package fabrik

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TargetTween animates an end effector's target toward a destination.
// Call Update(dt) each frame before solving; the effector's Target is
// written in place.
//
// There is no global animation manager; callers drive Update themselves.
type TargetTween struct {
	tweens [3]*gween.Tween
	target *EndEffector
	Done   bool
}

// TweenTarget creates a TargetTween that moves eff.Target to `to` over
// duration seconds using the easing function.
func TweenTarget(eff *EndEffector, to mgl64.Vec3, duration float32, fn ease.TweenFunc) *TargetTween {
	tw := &TargetTween{target: eff}
	for k := 0; k < 3; k++ {
		tw.tweens[k] = gween.New(float32(eff.Target[k]), float32(to[k]), duration, fn)
	}
	return tw
}

// Update advances the tween by dt seconds and writes the interpolated
// target. Once finished, further calls are no-ops.
func (tw *TargetTween) Update(dt float32) {
	if tw.Done || tw.target == nil {
		return
	}
	allDone := true
	for k := 0; k < 3; k++ {
		val, finished := tw.tweens[k].Update(dt)
		tw.target.Target[k] = float64(val)
		if !finished {
			allDone = false
		}
	}
	tw.Done = allDone
}

// Reset rewinds the tween to its starting target.
func (tw *TargetTween) Reset() {
	for k := 0; k < 3; k++ {
		tw.tweens[k].Reset()
	}
	tw.Done = false
}
