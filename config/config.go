package config

import (
	"os"
	"strings"
	"time"
)

// Config captures server-level configuration.
type Config struct {
	Addr           string
	DBPath         string
	JWTSigningKey  string
	TokenTTL       time.Duration
	UploadDir      string
	AllowedOrigins []string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("BLOODBANK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dbPath := os.Getenv("BLOODBANK_DB")
	if dbPath == "" {
		dbPath = "bloodbank.db"
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	if signingKey == "" {
		// Development default - must be overridden in production.
		signingKey = "dev-secret-key-change-in-production"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}

	return Config{
		Addr:           addr,
		DBPath:         dbPath,
		JWTSigningKey:  signingKey,
		TokenTTL:       24 * time.Hour,
		UploadDir:      uploadDir,
		AllowedOrigins: origins,
	}
}
