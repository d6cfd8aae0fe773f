package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"amlvm/engine"
	"amlvm/namespace"
	"amlvm/opregion"
	"amlvm/platform"
)

var (
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Usage: "fatal if the method has not returned within this duration",
		Value: 5 * time.Second,
	}
	debugFlag = cli.BoolFlag{
		Name:  "debug",
		Usage: "single-step the method through an interactive debugger instead of running it to completion",
	}
	backendFlag = cli.StringFlag{
		Name:  "backend",
		Usage: "OpRegion backend: memory (flat byte store) or controller (serialized worker goroutine)",
		Value: "memory",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "amlvm"
	app.Usage = "runs a Name/Method fixture through the AML execution core"
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "invoke one method from a flat namespace fixture",
			ArgsUsage: "<fixture.amlns> <method-path>",
			Flags:     []cli.Flag{timeoutFlag, debugFlag, backendFlag},
			Action:    runMethod,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMethod(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: amlvm run <fixture.amlns> <method-path>", 1)
	}
	fixturePath := c.Args().Get(0)
	methodPath := c.Args().Get(1)

	f, err := os.Open(fixturePath)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer f.Close()

	tree := namespace.New()
	if err := namespace.LoadFlat(tree, f); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	node, ok := tree.Lookup(methodPath)
	if !ok {
		return cli.NewExitError(fmt.Sprintf("no such node: %s", methodPath), 1)
	}

	log := logrus.New()
	plat := platform.New(log)

	var region engine.OpRegion
	switch c.String("backend") {
	case "controller":
		ctl := opregion.NewController()
		defer ctl.Close()
		region = ctl
	default:
		region = opregion.NewMemory()
	}

	a := engine.InitCallState(context.Background(), node, tree, region, plat)

	if c.Bool("debug") {
		dbg := engine.NewDebugger(a)
		if err := dbg.Run(os.Stdin, os.Stdout); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		fmt.Printf("return value: %+v\n", a.RetValue)
		return nil
	}

	if err := engine.RunWithTimeout(context.Background(), a, c.Duration("timeout")); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Printf("return value: %+v\n", a.RetValue)
	return nil
}
