package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Makepad-fr/todos/internal/cli"
)

func main() {
	code := cli.Execute(context.Background(), os.Args[1:])
	if code != cli.ExitOK {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
