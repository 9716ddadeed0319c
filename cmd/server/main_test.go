package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"riceshop/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	assert.Error(t, validateSecurityConfig(config.Config{JWTSecret: "short"}))
	assert.Error(t, validateSecurityConfig(config.Config{JWTSecret: ""}))
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	assert.NoError(t, validateSecurityConfig(config.Config{JWTSecret: "0123456789abcdef0123456789abcdef", AllowedOrigin: "*"}))
}

func TestValidateSecurityConfigRequiresOriginInProduction(t *testing.T) {
	cfg := config.Config{JWTSecret: "0123456789abcdef0123456789abcdef", Env: "production", AllowedOrigin: "*"}
	assert.Error(t, validateSecurityConfig(cfg))

	cfg.AllowedOrigin = "https://shop.example.com"
	assert.NoError(t, validateSecurityConfig(cfg))
}

func TestSetupLoggerFallsBackToInfo(t *testing.T) {
	previous := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	setupLogger(config.Config{LogLevel: "chatty", Env: "production"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	setupLogger(config.Config{LogLevel: "debug", Env: "production"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
