// Package logx is a thin zerolog wrapper: readable console output with a
// short caller, JSON file output rotated by lumberjack, and sinks that can
// be swapped at runtime through Service.Apply.
package logx
