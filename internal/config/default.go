package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrConfigExists is returned by WriteDefault when the file is already present
var ErrConfigExists = errors.New("config file already exists")

const defaultConfig = `# altcheck configuration

server:
  listen_addr: 127.0.0.1
  http_port: 8080

database:
  # sqlite or postgres
  driver: sqlite
  path: /var/lib/altcheck/altcheck.db
  # postgres settings
  # host: localhost
  # port: 5432
  # name: altcheck
  # username: altcheck
  # password: ""

auth:
  jwt_secret: "%s"
  token_duration: 24h

notify:
  prefix: "[AltChecker]"
  # nats:
  #   url: nats://127.0.0.1:4222
  #   subject: altcheck.alerts
  # redis:
  #   addr: 127.0.0.1:6379
  #   channel: altcheck:alerts

# proxy logs to watch for player connections
sources: []
#  - name: proxy
#    log_path: /srv/velocity/logs/latest.log
#    format: velocity
#    # record connections already in the log at startup
#    replay: false

log:
  mode: production
`

// WriteDefault writes a starter config to path, creating parent directories.
// It never overwrites an existing file.
func WriteDefault(path, jwtSecret string) error {
	if _, err := os.Stat(path); err == nil {
		return ErrConfigExists
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	content := fmt.Sprintf(defaultConfig, jwtSecret)
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
