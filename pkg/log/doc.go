/*
Package log provides structured logging for synccore using zerolog, plus a
second, independent plain-text call-site sink modeled on the original C
client's log(file, function, line, level, format, ...) entry point.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  │  - FilePath: call-site plain-text sink      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("apipool")                 │          │
	│  │  - WithHost("api.example.com")               │          │
	│  │  - WithConnID("c-19")                        │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
		FilePath:   "/var/log/synccore/callsite.log",
	})

	log.Info("pool initialized")
	poolLog := log.WithComponent("apipool")
	poolLog.Info().Str("host", "api.example.com").Msg("connection leased")

	log.Callsite(log.ErrorLevel, "handshake failed for %s: %v", host, err)

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at startup,
    accessible from every package without being passed down explicitly.

Call-site Sink Pattern:
  - FilePath opens lazily on first Callsite call and is never reopened
    on failure; logging must never fail the caller.

# Security

Never log secrets, passphrases, or raw key material. Use typed zerolog
fields rather than string interpolation for any caller-supplied data.
*/
package log
