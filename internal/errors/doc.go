// Package errors provides typed errors with exit codes for skybox.
//
// # Error Types
//
// SkyboxError is the base error type that wraps an error with an exit code:
//
//	type SkyboxError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Hint    string // Optional remediation hint
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
// Defined exit codes for different error categories:
//
//	ExitSuccess         = 0   // Success
//	ExitGeneralError    = 1   // General/unknown errors
//	ExitSessionNotFound = 2   // Session does not exist
//	ExitConfigError     = 3   // Configuration error
//	ExitAuthRequired    = 4   // Backend credentials missing
//	ExitCapacity        = 5   // Cloud quota/concurrency reached
//	ExitTransient       = 6   // Infrastructure failure after retries
//	ExitTerminated      = 7   // Compute unit no longer exists
//	ExitProvisioning    = 8   // Post-boot provisioning step failed
//	ExitCleanup         = 9   // Resource cleanup failed
//	ExitEngineFailed    = 10  // Container engine operation failed
//
// # Error Constructors
//
// Use the provided constructors for consistent error creation:
//
//	errors.SessionNotFound("feature-x")
//	errors.CapacityExceeded(3, err)
//	errors.ProvisioningFailed("clone", err)
//	errors.EngineFailed("create", err)
//
// # Classification
//
// Backend failures are classified into control-flow categories:
//
//	errors.IsTerminated(err)   // unit gone: resume instead of retry
//	errors.IsTransient(err)    // network blip: retry with backoff
//	errors.MatchesCapacity(err) // quota text: convert, never retry
//
// # Extracting Exit Codes
//
// Use GetExitCode to extract the exit code from an error chain:
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
