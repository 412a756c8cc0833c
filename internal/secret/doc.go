// Package secret stores credentials for the cloud control plane and
// coding agents.
//
// The default store writes to the OS keyring (Keychain on macOS,
// Secret Service on Linux, Credential Manager on Windows) and falls
// back to a mode-0600 JSON file under the data directory when no
// keyring is reachable, which is common on headless hosts and in CI.
//
// # Usage
//
//	store := secret.Open(paths.CredentialsPath)
//	err := store.Set(secret.Service, secret.TokenAccount, token)
//	token, err := store.Get(secret.Service, secret.TokenAccount)
//	err = store.Delete(secret.Service, secret.TokenAccount)
//
// A missing credential is reported as secret.ErrNotFound regardless of
// which backend answered.
package secret
