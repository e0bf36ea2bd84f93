package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/fieldgate/fieldgate/internal/bus"
	"github.com/fieldgate/fieldgate/internal/module"
	"github.com/fieldgate/fieldgate/internal/module/inproc"
)

// registerBuiltins installs the modules compiled into the gateway binary.
func registerBuiltins(reg *inproc.Registry) error {
	if err := reg.Register("logger", func() module.Module { return &loggerModule{} }); err != nil {
		return err
	}
	return reg.Register("heartbeat", func() module.Module { return &heartbeatModule{} })
}

// loggerModule logs every message it receives. Useful as a bus tap when
// bringing a new deployment up.
type loggerModule struct {
	logger *slog.Logger
	prefix string
}

func (m *loggerModule) Create(_ context.Context, _ module.Publisher, config []byte) error {
	m.logger = slog.Default()
	if len(config) > 0 {
		var cfg struct {
			Prefix string `json:"prefix"`
		}
		if err := json.Unmarshal(config, &cfg); err != nil {
			return oops.In("logger").Wrapf(err, "parsing config")
		}
		m.prefix = cfg.Prefix
	}
	return nil
}

func (m *loggerModule) Receive(_ context.Context, msg *bus.Message) error {
	m.logger.Info("bus message",
		"prefix", m.prefix,
		"message_id", msg.ID().String(),
		"payload_bytes", len(msg.Payload()),
		"properties", msg.Properties())
	return nil
}

func (m *loggerModule) Destroy(context.Context) error { return nil }

// heartbeatModule publishes a beat at a fixed interval until the gateway
// shuts down.
type heartbeatModule struct {
	pub      module.Publisher
	interval time.Duration
}

// Compile-time interface check.
var _ module.Starter = (*heartbeatModule)(nil)

func (m *heartbeatModule) Create(_ context.Context, pub module.Publisher, config []byte) error {
	m.pub = pub
	m.interval = 30 * time.Second
	if len(config) > 0 {
		var cfg struct {
			IntervalSeconds int `json:"interval_seconds"`
		}
		if err := json.Unmarshal(config, &cfg); err != nil {
			return oops.In("heartbeat").Wrapf(err, "parsing config")
		}
		if cfg.IntervalSeconds > 0 {
			m.interval = time.Duration(cfg.IntervalSeconds) * time.Second
		}
	}
	return nil
}

func (m *heartbeatModule) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			seq++
			err := m.pub.Publish(bus.NewMessage(
				[]byte(time.Now().UTC().Format(time.RFC3339)),
				map[string]string{
					"source": "heartbeat",
					"seq":    strconv.Itoa(seq),
				}))
			if err != nil {
				return oops.In("heartbeat").Wrapf(err, "publishing beat")
			}
		}
	}
}

func (m *heartbeatModule) Receive(context.Context, *bus.Message) error { return nil }

func (m *heartbeatModule) Destroy(context.Context) error { return nil }
