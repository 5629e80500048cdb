// Package logger provee un singleton de zap para todo el servicio.
//
// Uso típico:
//
//	logger.Init(logger.Config{
//	    Env:   os.Getenv("APP_ENV"),   // "dev" o "prod"
//	    Level: os.Getenv("LOG_LEVEL"), // "debug", "info", "warn", "error"
//	})
//	defer logger.Sync()
//
//	log := logger.Named("resolver")
//	log.Info("user resolved", logger.UserID(id), logger.Method("token"))
//
// En handlers/services preferir logger.From(ctx): el middleware de logging
// inyecta un logger scoped con request_id, method y path.
package logger
