package main

import (
	"go.uber.org/zap"

	"github.com/blackroad/power-manager/internal/config"
	"github.com/blackroad/power-manager/internal/logging"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
