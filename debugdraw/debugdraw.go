// Package debugdraw renders fabrik chains and poses with Ebitengine and runs
// small interactive demos. It is a debugging aid; the solver itself has no
// rendering dependency.
package debugdraw

import (
	"fmt"
	"image/color"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/phanxgames/fabrik"
)

// Game is the per-tick callback pair driven by Run.
type Game interface {
	Update() error
	Draw(screen *ebiten.Image)
}

// RunConfig configures the window opened by Run.
type RunConfig struct {
	Title   string
	Width   int
	Height  int
	ShowFPS bool
}

// Run opens a window and drives g until it returns an error or the window
// is closed.
func Run(g Game, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	sh := &shell{game: g, cfg: cfg}
	if cfg.ShowFPS {
		sh.fps = newFPSOverlay()
	}
	return ebiten.RunGame(sh)
}

type shell struct {
	game Game
	cfg  RunConfig
	fps  *fpsOverlay
}

func (s *shell) Update() error {
	if s.fps != nil {
		s.fps.update(1 / float64(ebiten.TPS()))
	}
	return s.game.Update()
}

func (s *shell) Draw(screen *ebiten.Image) {
	screen.Fill(Background)
	s.game.Draw(screen)
	if s.fps != nil {
		s.fps.draw(screen)
	}
}

func (s *shell) Layout(_, _ int) (int, int) {
	return s.cfg.Width, s.cfg.Height
}

// fpsOverlay displays the current FPS and TPS, refreshed every ~0.5 seconds.
type fpsOverlay struct {
	img        *ebiten.Image
	lastUpdate float64
	text       string
}

func newFPSOverlay() *fpsOverlay {
	// 100x32 is enough for "FPS: 60.0\nTPS: 60.0"
	return &fpsOverlay{img: ebiten.NewImage(100, 32)}
}

func (f *fpsOverlay) update(dt float64) {
	f.lastUpdate += dt
	if f.lastUpdate < 0.5 && f.text != "" {
		return
	}
	f.lastUpdate = 0
	f.text = fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS())
}

func (f *fpsOverlay) draw(screen *ebiten.Image) {
	f.img.Clear()
	// Semi-transparent background for readability
	f.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(f.img, f.text)
	screen.DrawImage(f.img, nil)
}

// Palette.
var (
	Background = color.RGBA{R: 26, G: 26, B: 38, A: 255}
	BoneColor  = color.RGBA{R: 200, G: 190, B: 160, A: 255}
	JointColor = color.RGBA{R: 240, G: 120, B: 80, A: 255}
	RootColor  = color.RGBA{R: 120, G: 200, B: 255, A: 255}
	GoalColor  = color.RGBA{R: 90, G: 230, B: 120, A: 255}
)

// Style controls line widths and joint radii.
type Style struct {
	BoneWidth   float32
	JointRadius float32
}

// DefaultStyle is used when a zero Style is passed.
var DefaultStyle = Style{BoneWidth: 3, JointRadius: 5}

func (s Style) orDefault() Style {
	if s == (Style{}) {
		return DefaultStyle
	}
	return s
}

// Projection maps a world position to screen pixels.
type Projection func(mgl64.Vec3) (x, y float32)

// Ortho returns a projection onto the XY plane with world +Y pointing up the
// screen, scale pixels per unit and the world origin at (cx, cy).
func Ortho(scale, cx, cy float64) Projection {
	return func(p mgl64.Vec3) (float32, float32) {
		return float32(cx + p.X()*scale), float32(cy - p.Y()*scale)
	}
}

// Chain2D draws a planar chain given in screen coordinates.
func Chain2D(dst *ebiten.Image, pos []mgl64.Vec2, st Style) {
	st = st.orDefault()
	for i := 1; i < len(pos); i++ {
		a, b := pos[i-1], pos[i]
		vector.StrokeLine(dst, float32(a.X()), float32(a.Y()), float32(b.X()), float32(b.Y()),
			st.BoneWidth, BoneColor, true)
	}
	for i, p := range pos {
		c := JointColor
		if i == 0 {
			c = RootColor
		}
		vector.DrawFilledCircle(dst, float32(p.X()), float32(p.Y()), st.JointRadius, c, true)
	}
}

// Graph draws every bone and joint of g at the given world positions,
// indexed by arena index.
func Graph(dst *ebiten.Image, g *fabrik.Graph, pos []mgl64.Vec3, project Projection, st Style) {
	st = st.orDefault()
	for _, i := range g.PreOrder() {
		p := g.Parent(i)
		if p < 0 {
			continue
		}
		x0, y0 := project(pos[p])
		x1, y1 := project(pos[i])
		vector.StrokeLine(dst, x0, y0, x1, y1, st.BoneWidth, BoneColor, true)
	}
	for i := range pos {
		c := JointColor
		if i == 0 {
			c = RootColor
		}
		x, y := project(pos[i])
		vector.DrawFilledCircle(dst, x, y, st.JointRadius, c, true)
	}
}

// Pose draws g from the parent-relative transforms a Solver produced.
func Pose(dst *ebiten.Image, g *fabrik.Graph, locals []fabrik.JointTransform, parent mgl64.Mat4, project Projection, st Style) {
	Graph(dst, g, fabrik.ComposePose(g, locals, parent), project, st)
}

// Target draws an end-effector goal marker.
func Target(dst *ebiten.Image, x, y float32, st Style) {
	st = st.orDefault()
	r := st.JointRadius * 1.6
	vector.StrokeLine(dst, x-r, y, x+r, y, 2, GoalColor, true)
	vector.StrokeLine(dst, x, y-r, x, y+r, 2, GoalColor, true)
}
