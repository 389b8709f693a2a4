// Command formula installs pre-built artifacts described by package
// descriptors.
package main

import (
	"context"
	"os"
	"os/signal"

	_ "github.com/git-pkgs/formula/all"
	"github.com/git-pkgs/formula/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
