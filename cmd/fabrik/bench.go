package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/fabrik"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// benchResult summarises one benchmark run.
type benchResult struct {
	Runs        int
	Joints      int
	Graphs      int
	Mean, Std   time.Duration
	Min, Max    time.Duration
	P50, P95    time.Duration
	Iterations  float64 // mean per solve, summed over graphs
	Convergence float64 // fraction of graph solves that converged
}

func runBench(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("fabrik bench", flag.ContinueOnError)
	fs.SetOutput(errOut)

	rigPath := fs.String("rig", "", "the YAML rig file to benchmark (a generated spider when empty)")
	n := fs.Int("n", 1000, "the number of solves to time")
	copies := fs.Int("copies", 1, "independent copies of the rig solved per frame")
	legs := fs.Int("legs", 8, "legs of the generated spider")
	bones := fs.Int("bones", 4, "bones per leg of the generated spider")
	jitter := fs.Float64("jitter", 2, "maximum per-axis random offset applied to every target")
	parallel := fs.Int("parallel", 1, "solve up to this many graphs concurrently")
	seed := fs.Uint64("seed", 1, "random seed for target jitter")
	quiet := fs.Bool("quiet", false, "hide the progress bar")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *n < 1 || *copies < 1 {
		return fmt.Errorf("bench: -n and -copies must be positive")
	}

	var base *fabrik.Frame
	if *rigPath != "" {
		rig, err := fabrik.LoadRigFile(*rigPath)
		if err != nil {
			return err
		}
		base = rig.Frame()
	} else {
		if *legs < 1 || *bones < 1 {
			return fmt.Errorf("bench: -legs and -bones must be positive")
		}
		base = spiderFrame(*legs, *bones)
	}
	frame := replicate(base, *copies, 100)

	var bar io.Writer = errOut
	if *quiet {
		bar = io.Discard
	}
	res, err := bench(frame, *n, *jitter, *parallel, *seed, bar)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[fabrik] %d solves | %d graphs | %d joints\n", res.Runs, res.Graphs, res.Joints)
	fmt.Fprintf(out, "[fabrik] mean: %v | std: %v | min: %v | p50: %v | p95: %v | max: %v\n",
		res.Mean, res.Std, res.Min, res.P50, res.P95, res.Max)
	fmt.Fprintf(out, "[fabrik] iterations/solve: %.2f | converged: %.1f%%\n",
		res.Iterations, 100*res.Convergence)
	return nil
}

// bench solves frame n times, jittering every target around its original
// position before each solve.
func bench(frame *fabrik.Frame, n int, jitter float64, parallel int, seed uint64, bar io.Writer) (benchResult, error) {
	solver := fabrik.NewSolver(fabrik.SolverConfig{Parallel: parallel, Log: io.Discard})
	rng := rand.New(rand.NewPCG(seed, 0))

	home := make([]mgl64.Vec3, len(frame.Effectors))
	for i, e := range frame.Effectors {
		home[i] = e.Target
	}

	// Build the graph cache outside the timed loop.
	warm, err := solver.Solve(frame)
	if err != nil {
		return benchResult{}, err
	}

	pb := progressbar.NewOptions64(int64(n),
		progressbar.OptionSetWriter(bar),
		progressbar.OptionSetDescription("solving"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
	defer pb.Close()

	samples := make([]float64, n)
	iterations, converged, solves := 0, 0, 0
	for k := 0; k < n; k++ {
		for i := range frame.Effectors {
			off := mgl64.Vec3{
				(rng.Float64()*2 - 1) * jitter,
				(rng.Float64()*2 - 1) * jitter,
				(rng.Float64()*2 - 1) * jitter,
			}
			frame.Effectors[i].Target = home[i].Add(off)
		}

		start := time.Now()
		out, err := solver.Solve(frame)
		samples[k] = float64(time.Since(start))
		if err != nil {
			return benchResult{}, err
		}
		for _, r := range out.Reports {
			iterations += r.Iterations
			solves++
			if r.Converged {
				converged++
			}
		}
		_ = pb.Add(1)
	}
	_ = pb.Finish()

	for i := range frame.Effectors {
		frame.Effectors[i].Target = home[i]
	}
	return summarize(samples, iterations, converged, solves, len(warm.Reports), len(warm.Transforms)), nil
}

func summarize(samples []float64, iterations, converged, solves, graphs, joints int) benchResult {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	if math.IsNaN(std) {
		std = 0
	}
	res := benchResult{
		Runs:   len(samples),
		Graphs: graphs,
		Joints: joints,
		Mean:   time.Duration(mean),
		Std:    time.Duration(std),
		Min:    time.Duration(floats.Min(sorted)),
		Max:    time.Duration(floats.Max(sorted)),
		P50:    time.Duration(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
	}
	if len(samples) > 0 {
		res.Iterations = float64(iterations) / float64(len(samples))
	}
	if solves > 0 {
		res.Convergence = float64(converged) / float64(solves)
	}
	return res
}

// spiderFrame generates a tree with legs branches of bones bones each, all
// hanging off one sub-base, with a target just below every foot.
func spiderFrame(legs, bones int) *fabrik.Frame {
	f := &fabrik.Frame{Joints: []fabrik.JointState{
		{ID: 1, Position: mgl64.Vec3{}, Root: true},
		{ID: 2, Parent: 1, Position: mgl64.Vec3{0, 2, 0}},
	}}
	id := fabrik.JointID(3)
	for l := 0; l < legs; l++ {
		ang := 2 * math.Pi * float64(l) / float64(legs)
		dir := mgl64.Vec3{math.Cos(ang), 0.3, math.Sin(ang)}.Normalize()
		parent := fabrik.JointID(2)
		var tip mgl64.Vec3
		for b := 1; b <= bones; b++ {
			tip = mgl64.Vec3{0, 2, 0}.Add(dir.Mul(float64(b) * 1.5))
			f.Joints = append(f.Joints, fabrik.JointState{ID: id, Parent: parent, Position: tip})
			parent = id
			id++
		}
		f.Effectors = append(f.Effectors, fabrik.EndEffector{
			Joint:     parent,
			Target:    tip.Add(mgl64.Vec3{0, -1, 0}),
			Tolerance: 0.01,
		})
	}
	return f
}

// replicate lays out count copies of f side by side, spacing apart,
// renumbering joint ids so the copies are independent rigs.
func replicate(f *fabrik.Frame, count int, spacing float64) *fabrik.Frame {
	if count == 1 {
		return f
	}
	var maxID fabrik.JointID
	for _, j := range f.Joints {
		maxID = max(maxID, j.ID)
	}
	out := &fabrik.Frame{}
	for c := 0; c < count; c++ {
		shift := fabrik.JointID(c) * maxID
		off := mgl64.Vec3{float64(c) * spacing, 0, 0}
		for _, j := range f.Joints {
			j.ID += shift
			if j.Parent != fabrik.NoJoint {
				j.Parent += shift
			}
			j.Position = j.Position.Add(off)
			out.Joints = append(out.Joints, j)
		}
		for _, e := range f.Effectors {
			e.Joint += shift
			e.Target = e.Target.Add(off)
			out.Effectors = append(out.Effectors, e)
		}
		for _, k := range f.Constraints {
			k.Joint += shift
			out.Constraints = append(out.Constraints, k)
		}
	}
	return out
}
