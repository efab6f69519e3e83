// Command fabrik solves IK rigs described in YAML and benchmarks the solver.
//
// Usage:
//
//	fabrik solve -rig arm.yaml [-script wave.json] [-debug]
//	fabrik bench [-rig arm.yaml] [-n 1000] [-parallel 4]
package main

import (
	"fmt"
	"io"
	"os"
)

const usage = `usage: fabrik <command> [flags]

commands:
  solve   solve a rig file and print the resulting local transforms as YAML
  bench   time repeated solves of a rig with jittered targets

run "fabrik <command> -h" for command flags
`

func run(args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(errOut, usage)
		return fmt.Errorf("no command given")
	}
	switch args[0] {
	case "solve":
		return runSolve(args[1:], out, errOut)
	case "bench":
		return runBench(args[1:], out, errOut)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(errOut, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "fabrik: %v\n", err)
		os.Exit(1)
	}
}
