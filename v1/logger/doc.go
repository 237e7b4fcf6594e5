// Package logger wraps Uber's Zap with the small structured-logging surface
// the engine components need, plus a no-op variant for tests.
package logger
