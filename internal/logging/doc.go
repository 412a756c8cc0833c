// Package logging provides logging utilities for skybox.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("booting unit", "session", id, "region", region)
//	logging.Warn("snapshot failed", "session", id, "error", err)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Creating session on branch %s...", branch)
//	logging.UserSuccess("Session %s is running", name)
//	logging.UserWarning("Snapshot failed; volume stays directly bootable")
//	logging.UserError("Failed to create session: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
