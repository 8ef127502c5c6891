// Package notify delivers fee reminders through pluggable providers.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Channel selects a delivery medium.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelConsole  Channel = "console"
)

// ParseChannel maps a name to a known channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail, ChannelConsole:
		return c, nil
	}
	return "", fmt.Errorf("unknown notification channel %q", s)
}

// Provider sends one message to one recipient.
type Provider interface {
	Send(ctx context.Context, to, body string) error
}

// ErrNoProvider is returned when no provider serves a channel.
type ErrNoProvider struct {
	Channel Channel
}

func (e *ErrNoProvider) Error() string { return "no provider configured for channel " + string(e.Channel) }

// Registry holds one provider per channel.
type Registry struct {
	mu        sync.RWMutex
	providers map[Channel]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[Channel]Provider)}
}

// Register sets the provider of a channel, replacing any previous one.
func (r *Registry) Register(ch Channel, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[ch] = p
}

// Provider returns the provider of a channel.
func (r *Registry) Provider(ch Channel) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[ch]
	if !ok {
		return nil, &ErrNoProvider{Channel: ch}
	}
	return p, nil
}

// Send delivers body to the recipient over ch.
func (r *Registry) Send(ctx context.Context, ch Channel, to, body string) error {
	p, err := r.Provider(ch)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, body)
}

// Config lists the provider credentials. Providers with empty credentials are not registered.
type Config struct {
	WatiURL        string
	WatiAPIKey     string
	SendgridAPIKey string
	FromEmail      string
	FromName       string
	Subject        string
}

// FromConfig builds a registry with the console provider plus every provider cfg enables.
func FromConfig(cfg Config, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := NewRegistry()
	r.Register(ChannelConsole, NewConsoleProvider(log))
	if cfg.WatiURL != "" {
		wati := NewWatiProvider(cfg.WatiURL, cfg.WatiAPIKey, nil)
		r.Register(ChannelWhatsApp, wati)
		r.Register(ChannelSMS, wati)
	}
	if cfg.SendgridAPIKey != "" {
		subject := cfg.Subject
		if subject == "" {
			subject = "School fee reminder"
		}
		r.Register(ChannelEmail, NewSendgridProvider(cfg.SendgridAPIKey, cfg.FromName, cfg.FromEmail, subject))
	}
	return r
}

// ConsoleProvider logs messages instead of sending them.
type ConsoleProvider struct {
	log *zap.Logger
}

func NewConsoleProvider(log *zap.Logger) *ConsoleProvider {
	return &ConsoleProvider{log: log.Named("notify")}
}

func (p *ConsoleProvider) Send(_ context.Context, to, body string) error {
	p.log.Info("reminder", zap.String("to", to), zap.String("body", body))
	return nil
}
