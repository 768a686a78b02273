package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mentormesh/mentormesh/internal/email"
)

// Sender delivers a single notification. The notifier worker looks senders
// up by channel name so deployments can route kinds to different transports.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type SenderFactory func(ctx context.Context) (Sender, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]SenderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]SenderFactory)}
}

func (r *Registry) Register(name string, f SenderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string) (Sender, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown notification channel: %s", name)
	}
	return f(ctx)
}

// SMTPSender renders the notification to a plain-text email.
type SMTPSender struct {
	cfg email.SMTPConfig
}

func NewSMTPSender(cfg email.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, n Notification) error {
	_ = ctx
	subject, body := Render(n)
	return email.SendText(s.cfg, n.To, subject, body)
}
