// Package log provides a logging abstraction for ylog components.
//
// This package defines a Logger interface that can be implemented by
// any logging library. Default implementations are provided for zerolog
// and a no-op logger for testing.
//
// # Usage
//
// Use the console adapter (colour only when stderr is a terminal):
//
//	logger := log.NewZerologAdapter(log.LevelInfo)
//
// Wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
package log
