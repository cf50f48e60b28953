// Package logging builds the zap loggers used by airtouch.
//
// Libraries in this module never log through a global: the session layer
// takes a *zap.Logger by injection. The command line keeps one process-wide
// logger, built by Initialize, and hands it down.
//
// # Log Levels
//
//   - Debug: raw frames, dropped bytes, retries
//   - Info: connections, units found, abilities received
//   - Warn: connection losses, dropped frames, gateway warnings
//   - Error: failures that end a command
//
// # Configuration
//
// The level comes from Options.Level or, when that is empty, from the
// AIRTOUCH_LOG_LEVEL environment variable. With neither set the logger is
// silent, so the command line prints only its own output by default:
//
//	if err := logging.Initialize(logging.Options{Level: "debug"}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Options.File adds a rotated log file next to the console output.
//
// # Frame Dumps
//
// HexBytes renders raw frames as colon-separated hex:
//
//	log.Debug("Frame received", logging.HexBytes("frame", f.Bytes()))
//
// # Thread Safety
//
// All loggers are safe for concurrent use.
package logging
