// Package ylog provides an embeddable relay for amateur-radio contest logging.
//
// Stations connect over WebSocket, submit contacts, and every accepted
// contact is appended to a ylog logsheet file before all connected stations
// are told about it. It can be used as a standalone CLI application or
// embedded as a library in other Go programs.
//
// # Basic Usage
//
//	cfg := ylog.Config{
//	    ListenAddr:   ":7373",
//	    LogsheetPath: "/var/lib/contest/logsheet.txt",
//	}
//
//	srv, err := ylog.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := srv.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for no-op defaults)
// and pass it via [WithEventHandler]. Events are called synchronously from
// the persistence goroutine and should return quickly.
//
// # Lifecycle States
//
// A Server moves Stopped → Starting → Running. Stop walks it through
// [StateStopping] (listener closed, stations disconnected) and
// [StateDraining] (queued contacts persisted) back to [StateStopped]. A
// failed startup, a failed worker or a drain that outlives
// ShutdownTimeout ends in [StateCrashed]. Use [Server.Status] to query the
// current state; [StateChangeEvent] carries the last sequence id.
//
// # Plugins
//
//	import "github.com/bft-labs/ylog/plugins/rotationwatcher"
//
//	srv, err := ylog.New(cfg, rotationwatcher.WithDefaultRotationWatcher())
package ylog
