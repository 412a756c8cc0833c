package main

import (
	"os"

	"github.com/skybox-dev/skybox/cmd"
	"github.com/skybox-dev/skybox/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
