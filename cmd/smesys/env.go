package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"smesys/internal/config"
	"smesys/internal/logging"
)

// commonFlags registers the flags every subcommand shares.
type commonFlags struct {
	config *string
	strict *bool
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", "smesys.yaml", "configuration file (.yaml, .yml or .toml)"),
		strict: fs.Bool("strict", false, "fail on first smali parse error"),
	}
}

// load reads the configuration and builds the logger from it.
func (c commonFlags) load() (*config.Config, *logrus.Logger, error) {
	boot := logrus.New()
	boot.SetOutput(os.Stderr)
	cfg, err := config.Load(*c.config, boot)
	if err != nil {
		return nil, nil, err
	}
	if *c.strict {
		cfg.Analysis.Mode = "strict"
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, log, nil
}
