// Package logger provides structured logging for the dialtone service,
// built on zerolog.
//
// Components obtain a tagged logger via WithComponent and attach structured
// fields through the Fields helpers:
//
//	log := logger.NewDefault("dialtone").WithComponent("transcribe")
//	log.Info("Job finished", logger.Fields("upload_id", id, "status", "completed"))
package logger
