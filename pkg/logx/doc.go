// Package logx is zapsender's logging layer: a small value-type Logger over
// zerolog plus a Service that fans records out to the console, a JSON file and,
// for warnings and errors, the operator's Telegram chat.
package logx
