package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/opd-ai/storybook/cmd"
	storybook "github.com/opd-ai/storybook/src"
)

const version = "0.1.0"

func main() {
	root := cmd.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(storybook.ExitCode(err))
	}
}
