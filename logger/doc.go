// Package logger provides structured logging capabilities.
//
// The logger package configures zap for the whole application. Production
// mode emits JSON with ISO8601 timestamps; development mode emits colored
// console output. The level comes from the logging section of the
// configuration.
package logger
