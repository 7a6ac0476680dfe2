package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/timzifer/cqlreg/config"
)

const defaultApp = "cqlreg"

// Setup creates a zerolog logger writing to stdout according to cfg.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, func(), error) {
	return New(cfg, os.Stdout)
}

// New creates a zerolog logger writing to out and, when enabled, to Loki.
// The returned cleanup flushes and stops the Loki client.
func New(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	if strings.EqualFold(cfg.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	writers := []io.Writer{out}
	cleanup := func() {}

	if cfg.Loki.Enabled {
		lokiWriter, stop, err := newLokiWriter(cfg.Loki)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, lokiWriter)
		cleanup = stop
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger().
		Level(level)
	return logger, cleanup, nil
}

// ParseLevel maps a configured level to zerolog. Empty means info.
func ParseLevel(value string) (zerolog.Level, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

func newLokiWriter(cfg config.LokiConfig) (io.Writer, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("loki url is required")
	}
	lokiCfg, err := loki.NewDefaultConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create loki client: %w", err)
	}
	return &lokiWriter{client: client, labels: lokiLabels(cfg.Labels)}, client.Stop, nil
}

func lokiLabels(configured map[string]string) model.LabelSet {
	labels := make(model.LabelSet, len(configured)+1)
	for k, v := range configured {
		labels[model.LabelName(k)] = model.LabelValue(v)
	}
	if _, ok := labels["app"]; !ok {
		labels["app"] = defaultApp
	}
	return labels
}

type lokiWriter struct {
	client *loki.Client
	labels model.LabelSet
}

func (l *lokiWriter) Write(p []byte) (int, error) {
	entry := strings.TrimSpace(string(p))
	if entry == "" {
		return len(p), nil
	}
	err := l.client.Handle(l.labels, time.Now(), entry)
	return len(p), err
}
