// Package leads validates captured contacts and forwards them to the lead webhook.
package leads

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/gateway"
)

const (
	defaultForwardTimeout = 10 * time.Second
	defaultSource         = "lead_capture"
)

// Forwarder posts a lead to the webhook sink.
type Forwarder interface {
	PostLead(ctx context.Context, lead gateway.Lead) error
}

// Lead is the contact form.
type Lead struct {
	Email     string `json:"email"`
	Phone     string `json:"celular,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// ValidationError carries per-field reasons plus an optional email domain suggestion.
type ValidationError struct {
	Fields     map[string]fields.Reason
	Suggestion string
}

func (e *ValidationError) Error() string {
	return "leads: invalid lead"
}

// Deps wires a Service.
type Deps struct {
	Forwarder      Forwarder
	Clock          func() time.Time
	Logger         func(ctx context.Context, event string, fields map[string]any)
	ForwardTimeout time.Duration
}

// Service validates leads and forwards them in the background.
type Service struct {
	forwarder Forwarder
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewService builds a Service. A nil forwarder disables forwarding.
func NewService(deps Deps) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := deps.ForwardTimeout
	if timeout <= 0 {
		timeout = defaultForwardTimeout
	}
	return &Service{
		forwarder: deps.Forwarder,
		now:       clock,
		logger:    logger,
		timeout:   timeout,
	}
}

// Submit validates the lead and hands it to the webhook without waiting for the result.
func (s *Service) Submit(ctx context.Context, lead Lead) (Lead, error) {
	lead = Lead{
		Email:     strings.TrimSpace(lead.Email),
		Phone:     strings.TrimSpace(lead.Phone),
		Instagram: normalizeInstagram(lead.Instagram),
	}

	invalid := map[string]fields.Reason{}
	if res := fields.ValidateEmail(lead.Email); !res.OK {
		invalid["email"] = res.Reason
	}
	if lead.Phone != "" {
		if res := fields.ValidatePhone(lead.Phone); !res.OK {
			invalid["celular"] = res.Reason
		} else {
			lead.Phone = fields.FormatPhone(lead.Phone, "")
		}
	}
	if len(invalid) > 0 {
		return Lead{}, &ValidationError{
			Fields:     invalid,
			Suggestion: fields.SuggestEmailDomain(fields.EmailDomain(lead.Email)),
		}
	}

	if s.forwarder == nil {
		s.logger(ctx, "leads.forward.skipped", map[string]any{"reason": "no_webhook"})
		return lead, nil
	}

	payload := gateway.Lead{
		Email:      lead.Email,
		Phone:      lead.Phone,
		Instagram:  lead.Instagram,
		Source:     defaultSource,
		CapturedAt: s.now().UTC().Format(time.RFC3339),
	}
	// detached from the request so the forward outlives the response
	fwdCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(fwdCtx, s.timeout)
		defer cancel()
		if err := s.forwarder.PostLead(ctx, payload); err != nil {
			if errors.Is(err, gateway.ErrNotConfigured) {
				return
			}
			s.logger(ctx, "leads.forward.failed", map[string]any{"error": err.Error()})
			return
		}
		s.logger(ctx, "leads.forward.sent", nil)
	}()
	return lead, nil
}

// Wait blocks until in-flight forwards finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func normalizeInstagram(handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ""
	}
	return "@" + strings.TrimLeft(handle, "@")
}
