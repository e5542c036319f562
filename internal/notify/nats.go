package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ernie/altcheck/internal/config"
	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/logger"
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes alerts as JSON on a NATS subject
type NATSPublisher struct {
	log     *logger.Logger
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to cfg.URL. The connection reconnects on its
// own; publishes made while disconnected are buffered by the client.
func NewNATSPublisher(cfg config.NATSConfig, log *logger.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "nats")

	nc, err := nats.Connect(cfg.URL,
		nats.Name("altcheck"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}

	return &NATSPublisher{log: log, nc: nc, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) Notify(_ context.Context, alert domain.Alert) error {
	data, err := json.Marshal(domain.NewAltAlertEvent(alert))
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
