// Command poc runs the exploit scenarios against an in process ledger and
// reports whether each one drained its victim.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/poc-ledger/pkg/ledger/localenv"
	"github.com/code-payments/poc-ledger/pkg/pocs"
)

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")
	level      = flag.Int("level", -1, "scenario level to run")
	all        = flag.Bool("all", false, "run every scenario")
)

func main() {
	flag.Parse()

	log := logrus.StandardLogger().WithField("type", "cmd/poc")

	config, err := loadConfig()
	if err != nil {
		log.WithError(err).Error("failed to load config")
		os.Exit(1)
	}
	configureLogger(config)

	var toRun []scenario
	switch {
	case *all:
		toRun = scenarios
	case *level >= 0:
		s, ok := findScenario(*level)
		if !ok {
			log.WithField("level", *level).Error("unknown level")
			os.Exit(1)
		}
		toRun = []scenario{s}
	default:
		log.Error("one of -level or -all is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	failed := 0
	for _, s := range toRun {
		report, err := runScenario(ctx, s, config)
		if err != nil {
			log.WithError(err).WithField("level", s.level).Error("scenario failed")
			failed++
			continue
		}
		if !report.Exploited {
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func loadConfig() (Config, error) {
	// viper only reports a missing file when it searches for one, so check an
	// explicitly configured path ourselves
	if _, err := os.Stat(*configPath); err == nil {
		viper.SetConfigFile(*configPath)
	} else if !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := viper.ReadInConfig()
	if _, isConfigNotFound := err.(viper.ConfigFileNotFoundError); err != nil && !isConfigNotFound {
		return Config{}, errors.Wrap(err, "failed to read config")
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, nil
}

func configureLogger(config Config) {
	if config.LogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}

func runScenario(ctx context.Context, s scenario, config Config) (*pocs.Report, error) {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"type":  "cmd/poc",
		"level": s.level,
		"name":  s.name,
	})

	env, err := localenv.New(ctx, s.options()...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create environment")
	}

	report, err := s.run(ctx, env)
	if err != nil {
		return nil, err
	}

	logReport(log, report)

	if config.DumpAccounts {
		accounts, err := env.Dump(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to dump accounts")
		}
		spew.Fdump(os.Stdout, accounts)
	}

	return report, nil
}

func logReport(log *logrus.Entry, report *pocs.Report) {
	log = log.WithField("program", base58.Encode(report.Program))

	for _, step := range report.Steps {
		stepLog := log.WithFields(logrus.Fields{
			"step":      step.Name,
			"signature": step.Signature.String(),
		})
		for _, msg := range step.LogMessages {
			stepLog.Debug(msg)
		}
	}

	for _, b := range report.Balances {
		log.WithFields(logrus.Fields{
			"account": base58.Encode(b.Address),
			"role":    b.Role.String(),
			"before":  b.Before,
			"after":   b.After,
			"delta":   b.Delta(),
			"unit":    b.Unit,
		}).Info(b.Label)
	}

	if report.Exploited {
		log.Info("exploited: " + report.Description)
	} else {
		log.Warn("not exploited")
	}
}
