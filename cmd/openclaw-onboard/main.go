// openclaw-onboard drives the onboarding service from the command line,
// in-process, against the local state directory.
package main

import (
	"errors"
	"os"
	"time"

	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exit codes for CLI commands.
const (
	// ExitCodeError is a general failure (bad flags, filesystem errors).
	ExitCodeError = 1
	// ExitCodeInvalidRequest mirrors the INVALID_REQUEST RPC code.
	ExitCodeInvalidRequest = 2
	// ExitCodeUnavailable mirrors the UNAVAILABLE RPC code.
	ExitCodeUnavailable = 3
)

// version can be set during build with -ldflags
var version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	root := newRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case models.ErrorCodeInvalidRequest:
			return ExitCodeInvalidRequest
		case models.ErrorCodeUnavailable:
			return ExitCodeUnavailable
		}
	}
	return ExitCodeError
}
