package main

import (
	"context"
	"fmt"
	"os"

	"sdkbridge/internal/buildinfo"
)

// version is set at build time: -ldflags "-X main.version=v1.2.3"
var version string

func main() {
	buildinfo.SetVersion(version)
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
