package main

import "github.com/angelmondragon/storefront-backend/pkg/logger"

// bootstrapLogger is used before configuration is available.
func bootstrapLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "api"})
}
