package leads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/gateway"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingForwarder struct {
	mu    sync.Mutex
	leads []gateway.Lead
	err   error
}

func (f *recordingForwarder) PostLead(_ context.Context, lead gateway.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, lead)
	return f.err
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) log(_ context.Context, event string, _ map[string]any) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
}

func TestSubmitForwardsNormalizedLead(t *testing.T) {
	forwarder := &recordingForwarder{}
	logs := &eventLog{}
	svc := NewService(Deps{Forwarder: forwarder, Clock: fixedClock, Logger: logs.log})

	lead, err := svc.Submit(context.Background(), Lead{Email: " aluno@gmail.com ", Phone: "11987654321", Instagram: "@@siege"})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, Lead{Email: "aluno@gmail.com", Phone: "(11) 98765-4321", Instagram: "@siege"}, lead)
	require.Len(t, forwarder.leads, 1)
	assert.Equal(t, gateway.Lead{
		Email:      "aluno@gmail.com",
		Phone:      "(11) 98765-4321",
		Instagram:  "@siege",
		Source:     "lead_capture",
		CapturedAt: "2026-10-19T12:00:00Z",
	}, forwarder.leads[0])
	assert.Equal(t, []string{"leads.forward.sent"}, logs.all())
}

func TestSubmitOutlivesRequestContext(t *testing.T) {
	forwarder := &recordingForwarder{}
	svc := NewService(Deps{Forwarder: forwarder, Clock: fixedClock})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Submit(ctx, Lead{Email: "aluno@gmail.com"})
	cancel()
	require.NoError(t, err)
	svc.Wait()
	assert.Len(t, forwarder.leads, 1)
}

func TestSubmitForwardFailureIsOnlyLogged(t *testing.T) {
	forwarder := &recordingForwarder{err: errors.New("webhook down")}
	logs := &eventLog{}
	svc := NewService(Deps{Forwarder: forwarder, Logger: logs.log})

	_, err := svc.Submit(context.Background(), Lead{Email: "aluno@gmail.com"})
	require.NoError(t, err)
	svc.Wait()
	assert.Equal(t, []string{"leads.forward.failed"}, logs.all())
}

func TestSubmitRejectsInvalidContact(t *testing.T) {
	forwarder := &recordingForwarder{}
	svc := NewService(Deps{Forwarder: forwarder})

	_, err := svc.Submit(context.Background(), Lead{Email: "aluno@gmial.com", Phone: "1198"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, map[string]fields.Reason{
		"email":   fields.ReasonBlockedDomain,
		"celular": fields.ReasonTooShort,
	}, vErr.Fields)
	assert.Equal(t, "gmail.com", vErr.Suggestion)

	svc.Wait()
	assert.Empty(t, forwarder.leads)
}

func TestSubmitWithoutWebhookSkipsForwarding(t *testing.T) {
	logs := &eventLog{}
	svc := NewService(Deps{Logger: logs.log})

	lead, err := svc.Submit(context.Background(), Lead{Email: "aluno@gmail.com"})
	require.NoError(t, err)
	assert.Equal(t, "aluno@gmail.com", lead.Email)
	assert.Equal(t, []string{"leads.forward.skipped"}, logs.all())
}
