// Package logx wraps zerolog with live-reloadable sinks: a readable console,
// a JSON log file and an optional operator chat for warnings and errors.
package logx
