// Package logging provides file-based structured logging with rotation.
// Logs are written as JSON lines to ~/.localsearch/logs/ with an optional
// stderr mirror; the --debug flag lowers the level to debug.
package logging
