// Command frostsnap is a headless driver for the FROST threshold-signing
// core: it runs a complete key generation or signing session against a set
// of simulated devices in-process, standing in for the real link-layer
// hardware discovery a production deployment wires up instead.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes match the command-line contract: 0 success, 1 usage error
// (bad flags, missing arguments), 2 protocol failure (a DKG or signing
// session didn't complete), 3 internal/storage error (couldn't read or
// write the key file).
const (
	exitOK       = 0
	exitUsage    = 1
	exitProtocol = 2
	exitInternal = 3
)

// exitError carries the process exit code a RunE failure should produce,
// since cobra itself only distinguishes "error" from "no error".
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func protocolErrorf(format string, args ...any) error {
	return &exitError{code: exitProtocol, err: fmt.Errorf(format, args...)}
}

func internalErrorf(format string, args ...any) error {
	return &exitError{code: exitInternal, err: fmt.Errorf(format, args...)}
}

var (
	devMode bool
	logger  *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "frostsnap",
		Short:         "Drive FROST threshold key generation and signing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside dev mode; only dev mode
			// treats it as something worth mentioning.
			if err := godotenv.Load(); err != nil && devMode {
				fmt.Fprintf(os.Stderr, "frostsnap: no .env file loaded: %v\n", err)
			}
			var err error
			if devMode {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return &exitError{code: exitInternal, err: err}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&devMode, "dev", false, "run with development logging and report .env load failures")
	root.AddCommand(newKeygenCmd(), newSignCmd())
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		code := exitInternal
		var ee *exitError
		if e, ok := err.(*exitError); ok {
			ee = e
		}
		if ee != nil {
			code = ee.code
		}
		fmt.Fprintf(os.Stderr, "frostsnap: %v\n", err)
		os.Exit(code)
	}
}
