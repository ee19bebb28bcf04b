package main

import (
	"fmt"
	"os"

	"github.com/tphakala/birdnet-go/cmd"
	"github.com/tphakala/birdnet-go/internal/conf"
	"github.com/tphakala/birdnet-go/internal/logging"
	"github.com/tphakala/birdnet-go/internal/ploopback"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(ploopback.KindOf(err)))
	}
}

func exitCodeFor(kind ploopback.ErrorKind) int {
	switch kind {
	case ploopback.ErrNone:
		return 0
	case ploopback.ErrUnsupportedPlatform:
		return 10
	case ploopback.ErrNoSuchProcess:
		return 11
	case ploopback.ErrAccessDenied:
		return 12
	case ploopback.ErrActivationTimeout:
		return 13
	case ploopback.ErrEndpointInitFailed:
		return 14
	case ploopback.ErrInvalidState:
		return 15
	default:
		return 1
	}
}
