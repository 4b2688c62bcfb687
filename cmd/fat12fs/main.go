package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(afero.NewOsFs(), os.Stdin, os.Stdout, os.Stderr)

	err := app.Run(os.Args)
	if err != nil {
		cli.HandleExitCoder(err)
		fmt.Fprintf(os.Stderr, "fatal error: %s\n", err.Error())
		os.Exit(1)
	}
}
