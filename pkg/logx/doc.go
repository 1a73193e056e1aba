// Package logx configures alan's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Levels swappable at runtime via Service.Apply (config hot reload)
package logx
