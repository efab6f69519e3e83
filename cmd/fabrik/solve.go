package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phanxgames/fabrik"
	"gopkg.in/yaml.v3"
)

type jointDoc struct {
	Name        string     `yaml:"name"`
	Rotation    [4]float64 `yaml:"rotation,flow"` // w, x, y, z
	Translation [3]float64 `yaml:"translation,flow"`
	Scale       [3]float64 `yaml:"scale,flow"`
}

type effectorDoc struct {
	Joint     string  `yaml:"joint"`
	Distance  float64 `yaml:"distance"`
	Reachable bool    `yaml:"reachable"`
	Converged bool    `yaml:"converged"`
}

type reportDoc struct {
	Root       string        `yaml:"root"`
	Chain      bool          `yaml:"chain"`
	Iterations int           `yaml:"iterations"`
	Converged  bool          `yaml:"converged"`
	Error      string        `yaml:"error,omitempty"`
	Effectors  []effectorDoc `yaml:"effectors,omitempty"`
}

type poseDoc struct {
	Rig     string      `yaml:"rig"`
	Frames  int         `yaml:"frames"`
	Joints  []jointDoc  `yaml:"joints"`
	Reports []reportDoc `yaml:"reports"`
	Skipped []string    `yaml:"skipped,omitempty"`
}

func runSolve(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("fabrik solve", flag.ContinueOnError)
	fs.SetOutput(errOut)

	rigPath := fs.String("rig", "", "the YAML rig file to solve")
	scriptPath := fs.String("script", "", "a JSON target script to play before printing the final pose")
	maxFrames := fs.Int("frames", 10000, "stop a script after this many frames")
	iterations := fs.Int("iterations", 0, "single-chain iteration budget (0 for the default)")
	treeIterations := fs.Int("tree-iterations", 0, "multi-effector iteration budget (0 for the default)")
	debug := fs.Bool("debug", false, "log per-frame timing and convergence stats to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rigPath == "" && fs.NArg() > 0 {
		*rigPath = fs.Arg(0)
	}
	if *rigPath == "" {
		return fmt.Errorf("solve: a rig file is required (-rig)")
	}

	rig, err := fabrik.LoadRigFile(*rigPath)
	if err != nil {
		return err
	}

	var script *fabrik.TargetScript
	if *scriptPath != "" {
		data, err := os.ReadFile(*scriptPath)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if script, err = fabrik.LoadTargetScript(data); err != nil {
			return err
		}
	}

	solver := fabrik.NewSolver(fabrik.SolverConfig{
		MaxIterations:  *iterations,
		TreeIterations: *treeIterations,
		Log:            errOut,
	})
	solver.SetDebugMode(*debug)

	frame := rig.Frame()
	var result fabrik.Output
	frames := 0
	for {
		if script != nil {
			script.Step(frame)
		}
		result, err = solver.Solve(frame)
		if err != nil {
			return fmt.Errorf("solve frame %d: %w", frames, err)
		}
		frames++
		if script == nil || script.Done() || frames >= *maxFrames {
			break
		}
	}

	doc := poseDoc{Rig: rig.Name, Frames: frames}
	for _, tr := range result.Transforms {
		q := tr.Rotation
		doc.Joints = append(doc.Joints, jointDoc{
			Name:        rig.JointName(tr.Joint),
			Rotation:    [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
			Translation: tr.Translation,
			Scale:       tr.Scale,
		})
	}
	for _, r := range result.Reports {
		rd := reportDoc{
			Root:       rig.JointName(r.Root),
			Chain:      r.Chain,
			Iterations: r.Iterations,
			Converged:  r.Converged,
		}
		if r.Err != nil {
			rd.Error = r.Err.Error()
		}
		for _, e := range r.Effectors {
			rd.Effectors = append(rd.Effectors, effectorDoc{
				Joint:     rig.JointName(e.Effector),
				Distance:  e.Distance,
				Reachable: e.Reachable,
				Converged: e.Converged,
			})
		}
		doc.Reports = append(doc.Reports, rd)
	}
	for _, s := range result.Skipped {
		doc.Skipped = append(doc.Skipped, fmt.Sprintf("%s: %v", rig.JointName(s.Effector), s.Err))
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write pose: %w", err)
	}
	return enc.Close()
}
