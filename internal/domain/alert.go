package domain

import (
	"strings"
	"time"
)

// DefaultAlertPrefix is prepended to every alert message
const DefaultAlertPrefix = "[AltChecker]"

// Alert is raised when a connecting account shares its address with
// previously seen accounts
type Alert struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"` // proxy/log source that reported the connection
	Account   string    `json:"account"`
	Address   string    `json:"ip"`
	Alts      []string  `json:"alts"`
	Timestamp time.Time `json:"timestamp"`
	Prefix    string    `json:"-"`
}

// Message formats the staff broadcast line
func (a Alert) Message() string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = DefaultAlertPrefix
	}
	return prefix + " " + a.Account + " is using the same IP as: " + strings.Join(a.Alts, ", ")
}
