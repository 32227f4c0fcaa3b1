package main

import (
	"errors"
	"flag"
	"net/url"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/Tuvshee555/Auto-reception/internal/config"
	"github.com/Tuvshee555/Auto-reception/internal/logging"
)

func main() {
	var dir, command string
	flag.StringVar(&dir, "path", "migrations", "migrations directory")
	flag.StringVar(&command, "cmd", "up", "migration command (up, down, version, force)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil && !errors.Is(err, config.ErrMissingLLMKey) {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(cfg.LogLevel, cfg.IsProduction())

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	log.Info().Str("path", dir).Str("database", maskDatabaseURL(cfg.DatabaseURL)).Msg("running migrations")

	m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("create migrate instance")
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("migrate up")
		}
		log.Info().Msg("migrations up completed")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("migrate down")
		}
		log.Info().Msg("migrations down completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("read version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current version")

	case "force":
		v, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			log.Fatal().Msg("force needs a version number argument")
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Msg("force")
		}
		log.Info().Int("version", v).Msg("forced version")

	default:
		log.Fatal().Str("cmd", command).Msg("unknown command (use: up, down, version, force)")
	}
}

// maskDatabaseURL hides the password for logging.
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
