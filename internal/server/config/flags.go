package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-s", "-t", "-u", "-p", "-b", "-g", "-e",
	"-storage", "-upload-dir", "-env", "-log-level", "-bcrypt-cost", "-max-upload",
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string        HTTP bind address (e.g., ":5000")
//	-d string        PostgreSQL DSN
//	-s string        JWT HMAC secret key
//	-t int           access token validity, minutes
//	-u string        S3 root user
//	-p string        S3 root password
//	-b string        S3 bucket name
//	-g string        S3 region
//	-e string        S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-storage string  upload backend, "s3" or "local"
//	-upload-dir      directory for the local backend
//	-env string      "production" or "development"
//	-log-level       debug, info, warn, error
//	-bcrypt-cost int bcrypt work factor
//	-max-upload int  max upload size in bytes
//
// os.Args is first filtered down to these flags with flagx.FilterArgs so the
// config file flag does not make parsing fail.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "upload storage backend (s3|local)")
	fs.StringVar(&config.UploadDir, "upload-dir", config.UploadDir, "local upload directory")
	fs.StringVar(&config.Environment, "env", config.Environment, "environment (production|development)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.IntVar(&config.BcryptCost, "bcrypt-cost", config.BcryptCost, "bcrypt cost")
	fs.Int64Var(&config.MaxUploadBytes, "max-upload", config.MaxUploadBytes, "max upload size in bytes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
