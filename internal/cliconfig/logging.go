package cliconfig

import (
	"fmt"
	"os"

	"github.com/bft-labs/ylog/pkg/log"
)

// NewLogger returns the console logger used by the CLI, writing to stderr.
func NewLogger(level string) (log.Logger, error) {
	lvl, ok := log.ParseLevel(level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return log.NewZerologAdapterWithLogger(log.NewConsoleLogger(os.Stderr, lvl)), nil
}
