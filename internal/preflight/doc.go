// Package preflight provides readiness checks for the external services
// and filesystem paths revoice depends on.
//
// The CLI status command uses these checks to display service health, and
// the process command runs them before starting the daemon so obviously
// broken setups fail fast instead of sending items to review one by one.
package preflight
