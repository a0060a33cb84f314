// Package checkout drives one visitor's checkout from access token to confirmed order.
package checkout

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/siege-masterclass/checkout/internal/cards"
	"github.com/siege-masterclass/checkout/internal/countdown"
	"github.com/siege-masterclass/checkout/internal/events"
	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/gateway"
	"github.com/siege-masterclass/checkout/internal/installments"
	"github.com/siege-masterclass/checkout/internal/platform/observability"
	"github.com/siege-masterclass/checkout/internal/storage"
)

const (
	defaultUpsellPrice   = 27.0
	defaultUpsellName    = "Pacote de Bônus"
	defaultPixTTL        = 15 * time.Minute
	defaultRedirectAfter = 10 * time.Second
	defaultRedirectURL   = "/"
	defaultTickInterval  = time.Second

	// DefaultPixCode is the copy-and-paste code shown when no real PIX provider is wired.
	DefaultPixCode = "00020126580014br.gov.bcb.pix0136PIX_PLACEHOLDER_CODE52040000530398654041.005802BR"
)

// Visitor-facing texts.
const (
	ReasonMissingToken     = "Nenhum token fornecido."
	ReasonInvalidToken     = "Link inválido ou já utilizado."
	ReasonTokenUnreachable = "Erro ao validar o link. Tente novamente."
	ReasonOfferUnavailable = "Oferta indisponível para este link."
)

var (
	notificationPending  = Notification{Title: "Pagamento em análise", Message: "Você receberá um e-mail de confirmação.", Variant: VariantInfo}
	notificationRejected = Notification{Title: "Pagamento recusado", Message: "Verifique os dados do cartão.", Variant: VariantDestructive}
	notificationUnknown  = Notification{Title: "Erro", Message: "Erro interno. Tente novamente.", Variant: VariantDestructive}
	notificationNetwork  = Notification{Title: "Erro de conexão", Message: "Não foi possível processar. Tente novamente.", Variant: VariantDestructive}
)

// TokenResolver validates access tokens.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (gateway.TokenResponse, error)
}

// PaymentSubmitter forwards the order payload and returns the verdict.
type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, payload gateway.PaymentPayload, idempotencyKey string) (gateway.PaymentResult, error)
}

// Settings are the per-deployment knobs of the flow.
type Settings struct {
	UpsellPrice   float64
	UpsellName    string
	PixTTL        time.Duration
	PixCode       string
	RedirectAfter time.Duration
	RedirectURL   string
	TickInterval  time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.UpsellPrice <= 0 {
		s.UpsellPrice = defaultUpsellPrice
	}
	if strings.TrimSpace(s.UpsellName) == "" {
		s.UpsellName = defaultUpsellName
	}
	if s.PixTTL <= 0 {
		s.PixTTL = defaultPixTTL
	}
	if strings.TrimSpace(s.PixCode) == "" {
		s.PixCode = DefaultPixCode
	}
	if s.RedirectAfter <= 0 {
		s.RedirectAfter = defaultRedirectAfter
	}
	if strings.TrimSpace(s.RedirectURL) == "" {
		s.RedirectURL = defaultRedirectURL
	}
	if s.TickInterval <= 0 {
		s.TickInterval = defaultTickInterval
	}
	return s
}

// DefaultSettings returns the stock flow settings.
func DefaultSettings() Settings {
	return Settings{}.withDefaults()
}

// Deps wires the collaborators of a Controller.
type Deps struct {
	SessionID      string
	Tokens         TokenResolver
	Payments       PaymentSubmitter
	Deadlines      storage.DeadlineStore
	Events         events.Publisher
	Clock          func() time.Time
	Logger         func(ctx context.Context, event string, fields map[string]any)
	IdempotencyKey func() string
	Settings       Settings
}

// Controller owns one session. All commands are safe for concurrent use.
type Controller struct {
	id        string
	tokens    TokenResolver
	payments  PaymentSubmitter
	deadlines storage.DeadlineStore
	events    events.Publisher
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	newKey    func() string
	settings  Settings

	mu           sync.Mutex
	token        string
	phase        Phase
	errorReason  string
	offer        Offer
	customer     Customer
	upsellSet    bool
	upsellTaken  bool
	pix          *PixCharge
	pixTimer     *countdown.Timer
	redirect     *countdown.Timer
	busy         bool
	notification *Notification
	closed       bool
	lastActivity time.Time

	pixExpired atomic.Bool
	finished   atomic.Bool
}

// NewController validates dependencies and returns a controller in the loading phase.
func NewController(deps Deps) (*Controller, error) {
	if deps.Tokens == nil {
		return nil, errors.New("checkout controller: token resolver is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout controller: payment submitter is required")
	}
	if deps.Deadlines == nil {
		return nil, errors.New("checkout controller: deadline store is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	newKey := deps.IdempotencyKey
	if newKey == nil {
		newKey = uuid.NewString
	}

	c := &Controller{
		id:        strings.TrimSpace(deps.SessionID),
		tokens:    deps.Tokens,
		payments:  deps.Payments,
		deadlines: deps.Deadlines,
		events:    publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:   logger,
		newKey:   newKey,
		settings: deps.Settings.withDefaults(),
		phase:    PhaseLoading,
	}
	c.lastActivity = c.now()
	return c, nil
}

// ID returns the session id the controller was created with.
func (c *Controller) ID() string {
	return c.id
}

// Start resolves the access token. Every failure ends in the error phase; the returned error is
// only set when the command itself is not allowed.
func (c *Controller) Start(ctx context.Context, token string) (Snapshot, error) {
	c.mu.Lock()
	if err := c.guard("start", PhaseLoading); err != nil {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	if c.busy {
		c.mu.Unlock()
		return c.Snapshot(), ErrCheckoutSubmissionInProgress
	}
	token = strings.TrimSpace(token)
	c.token = token
	if token == "" {
		c.fail(ctx, ReasonMissingToken, "missing_token")
		c.mu.Unlock()
		return c.Snapshot(), nil
	}
	c.busy = true
	c.mu.Unlock()

	resp, err := c.tokens.ResolveToken(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if c.closed {
		return c.snapshotLocked(), ErrCheckoutClosed
	}

	switch {
	case err != nil:
		c.logger(ctx, "checkout.token.failed", c.logFields(map[string]any{"error": err.Error()}))
		c.fail(ctx, ReasonTokenUnreachable, "token_unreachable")
	case !resp.Usable():
		reason := strings.TrimSpace(resp.Reason)
		if reason == "" {
			reason = ReasonInvalidToken
		}
		c.fail(ctx, reason, "token_rejected")
	case resp.OfferPrice == nil || *resp.OfferPrice < 0 || math.IsNaN(*resp.OfferPrice):
		c.fail(ctx, ReasonOfferUnavailable, "offer_missing")
	default:
		c.offer = Offer{
			ProductName:   strings.TrimSpace(resp.ProductName),
			OriginalPrice: resp.OriginalPrice,
			OfferPrice:    *resp.OfferPrice,
			UpsellName:    c.settings.UpsellName,
			UpsellPrice:   c.settings.UpsellPrice,
		}
		c.customer = Customer{
			Name:  fields.CleanName(resp.Name),
			Email: strings.TrimSpace(resp.Email),
			Phone: fields.FormatPhone(resp.Phone, ""),
		}
		if err := c.moveTo(PhaseDataEntry); err != nil {
			return c.snapshotLocked(), err
		}
		c.logger(ctx, "checkout.session.started", c.logFields(map[string]any{
			"product": c.offer.ProductName,
			"price":   c.offer.OfferPrice,
		}))
	}
	return c.snapshotLocked(), nil
}

// SubmitDataEntry validates name, phone and tax id and moves on to the upsell offer.
func (c *Controller) SubmitDataEntry(ctx context.Context, entry DataEntry) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("submit_data_entry", PhaseDataEntry); err != nil {
		return c.snapshotLocked(), err
	}

	checks := fieldChecks{}
	checks.check(FieldName, fields.ValidateName(entry.Name))
	checks.check(FieldPhone, fields.ValidatePhone(entry.Phone))
	checks.check(FieldTaxID, fields.ValidateCPF(entry.TaxID))
	if err := checks.err(); err != nil {
		c.logger(ctx, "checkout.data_entry.invalid", c.logFields(map[string]any{"fields": fieldNames(checks)}))
		return c.snapshotLocked(), err
	}

	c.customer.Name = fields.CleanName(entry.Name)
	c.customer.Phone = fields.FormatPhone(entry.Phone, "")
	c.customer.TaxID = fields.FormatCPF(entry.TaxID, "")
	if err := c.moveTo(PhaseUpsell); err != nil {
		return c.snapshotLocked(), err
	}
	c.logger(ctx, "checkout.data_entry.accepted", c.logFields(map[string]any{
		"cpf": observability.MaskTaxID(fields.Digits(c.customer.TaxID)),
	}))
	return c.snapshotLocked(), nil
}

// BackToDataEntry returns from the upsell offer to the data form keeping what was entered.
func (c *Controller) BackToDataEntry(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("back_to_data_entry", PhaseUpsell); err != nil {
		return c.snapshotLocked(), err
	}
	if err := c.moveTo(PhaseDataEntry); err != nil {
		return c.snapshotLocked(), err
	}
	c.logger(ctx, "checkout.data_entry.reopened", c.logFields(nil))
	return c.snapshotLocked(), nil
}

// ResolveUpsell records the one-time offer decision and opens the payment step.
func (c *Controller) ResolveUpsell(ctx context.Context, accepted bool) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("resolve_upsell", PhaseUpsell); err != nil {
		return c.snapshotLocked(), err
	}
	c.upsellSet = true
	c.upsellTaken = accepted
	if err := c.moveTo(PhasePayment); err != nil {
		return c.snapshotLocked(), err
	}
	c.logger(ctx, "checkout.upsell.resolved", c.logFields(map[string]any{
		"accepted": accepted,
		"total":    c.totalLocked(),
	}))
	return c.snapshotLocked(), nil
}

// GeneratePix issues the PIX code and starts its countdown. A deadline persisted for the same token
// that has not passed is reused, so generating again after a reload resumes the same countdown.
// The deadline store is consulted without holding the session lock.
func (c *Controller) GeneratePix(ctx context.Context) (PixCharge, error) {
	c.mu.Lock()
	if err := c.guard("generate_pix", PhasePayment); err != nil {
		c.mu.Unlock()
		return PixCharge{}, err
	}
	if pix, ok := c.livePixLocked(); ok {
		c.mu.Unlock()
		return pix, nil
	}
	key := storage.PixKey(c.token)
	base := c.logFields(nil)
	c.mu.Unlock()

	deadline := c.resolvePixDeadline(ctx, key, base)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard("generate_pix", PhasePayment); err != nil {
		return PixCharge{}, err
	}
	if pix, ok := c.livePixLocked(); ok {
		return pix, nil
	}

	c.pixTimer.Stop()
	c.pixExpired.Store(false)
	c.pix = &PixCharge{Code: c.settings.PixCode, ExpiresAt: deadline}
	sessionID := c.id
	c.pixTimer = countdown.Start(deadline, c.now, c.settings.TickInterval, nil, func() {
		c.pixExpired.Store(true)
		c.logger(context.Background(), "checkout.pix.expired", map[string]any{"session_id": sessionID})
	})
	c.touch()
	c.logger(ctx, "checkout.pix.generated", c.logFields(map[string]any{"expires_at": deadline.Format(time.RFC3339)}))
	return *c.pix, nil
}

func (c *Controller) livePixLocked() (PixCharge, bool) {
	if c.pix != nil && !c.pixExpired.Load() && c.now().Before(c.pix.ExpiresAt) {
		return *c.pix, true
	}
	return PixCharge{}, false
}

// resolvePixDeadline reuses a stored deadline that has not passed, otherwise persists a fresh one.
func (c *Controller) resolvePixDeadline(ctx context.Context, key string, base map[string]any) time.Time {
	now := c.now()
	deadline, err := c.deadlines.Load(ctx, key)
	switch {
	case err == nil && deadline.After(now):
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		c.logger(ctx, "checkout.pix.deadline_load_failed", withError(base, err))
		deadline = now.Add(c.settings.PixTTL)
	default:
		deadline = now.Add(c.settings.PixTTL)
	}
	if err := c.deadlines.Save(ctx, key, deadline, deadline.Sub(now)); err != nil {
		c.logger(ctx, "checkout.pix.deadline_save_failed", withError(base, err))
	}
	return deadline
}

func withError(base map[string]any, err error) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

// SubmitPayment validates the intent, posts the order and applies the verdict. Only an approved
// verdict confirms the order; every other outcome, including transport failures, becomes a
// notification and leaves the payment fields untouched.
func (c *Controller) SubmitPayment(ctx context.Context, intent PaymentIntent) (Snapshot, error) {
	c.mu.Lock()
	if err := c.guard("submit_payment", PhasePayment); err != nil {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	if c.busy {
		c.mu.Unlock()
		return c.Snapshot(), ErrCheckoutSubmissionInProgress
	}
	if err := c.validateIntent(intent); err != nil {
		c.logger(ctx, "checkout.payment.invalid", c.logFields(map[string]any{"fields": validationFields(err)}))
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	c.busy = true
	c.notification = nil
	payload := c.buildPayload(intent)
	c.mu.Unlock()

	released := false
	defer func() {
		if !released {
			c.mu.Lock()
			c.busy = false
			c.mu.Unlock()
		}
	}()

	key := c.newKey()
	result, err := c.payments.SubmitPayment(ctx, payload, key)

	c.mu.Lock()
	c.busy = false
	released = true
	defer c.mu.Unlock()
	c.touch()

	if err != nil {
		c.logger(ctx, "checkout.payment.failed", c.logFields(map[string]any{
			"method": payload.Payment.Method,
			"error":  err.Error(),
		}))
		c.notify(notificationNetwork, "")
		c.publish(ctx, events.TypePaymentAttempted, "network_error", payload)
		return c.snapshotLocked(), nil
	}

	status := result.NormalizedStatus()
	c.logger(ctx, "checkout.payment.submitted", c.logFields(map[string]any{
		"method":       payload.Payment.Method,
		"installments": payload.Payment.Installments,
		"total":        payload.Payment.TotalValue,
		"status":       status,
	}))

	switch status {
	case gateway.StatusApproved:
		if err := c.moveTo(PhaseConfirmed); err != nil {
			return c.snapshotLocked(), err
		}
		c.confirm(ctx)
		c.publish(ctx, events.TypeConfirmed, status, payload)
	case gateway.StatusPending:
		c.notify(notificationPending, result.Message)
		c.publish(ctx, events.TypePaymentAttempted, status, payload)
	case gateway.StatusRejected:
		c.notify(notificationRejected, result.Message)
		c.publish(ctx, events.TypePaymentAttempted, status, payload)
	default:
		c.notify(notificationUnknown, result.Message)
		c.publish(ctx, events.TypePaymentAttempted, status, payload)
	}
	return c.snapshotLocked(), nil
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close cancels every timer. Later commands fail with ErrCheckoutClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimers()
}

// Finished reports whether the post-confirmation redirect has elapsed.
func (c *Controller) Finished() bool {
	return c.finished.Load()
}

// LastActivity returns when a command last changed the session.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) guard(command string, want Phase) error {
	if c.closed {
		return ErrCheckoutClosed
	}
	if c.phase != want {
		return &TransitionError{Phase: c.phase, Command: command}
	}
	return nil
}

func (c *Controller) moveTo(next Phase) error {
	if !CanTransition(c.phase, next) {
		return &TransitionError{Phase: c.phase, Target: next}
	}
	if c.phase == PhasePayment {
		c.stopPix()
	}
	c.phase = next
	c.touch()
	return nil
}

func (c *Controller) fail(ctx context.Context, reason, code string) {
	c.errorReason = reason
	c.phase = PhaseError
	c.touch()
	c.logger(ctx, "checkout.session.failed", c.logFields(map[string]any{"reason": code}))
}

func (c *Controller) confirm(ctx context.Context) {
	if err := c.deadlines.Delete(ctx, storage.PixKey(c.token)); err != nil {
		c.logger(ctx, "checkout.pix.deadline_delete_failed", c.logFields(map[string]any{"error": err.Error()}))
	}
	c.notification = nil
	if c.closed {
		return
	}
	sessionID := c.id
	c.redirect = countdown.Start(c.now().Add(c.settings.RedirectAfter), c.now, c.settings.TickInterval, nil, func() {
		c.finished.Store(true)
		c.logger(context.Background(), "checkout.redirect.elapsed", map[string]any{"session_id": sessionID})
	})
	c.logger(ctx, "checkout.confirmed", c.logFields(map[string]any{"total": c.totalLocked()}))
}

func (c *Controller) notify(base Notification, message string) {
	n := base
	if msg := strings.TrimSpace(message); msg != "" {
		n.Message = msg
	}
	c.notification = &n
}

func (c *Controller) publish(ctx context.Context, kind events.Type, status string, payload gateway.PaymentPayload) {
	err := c.events.Publish(ctx, events.Event{
		Type:       kind,
		SessionID:  c.id,
		Token:      c.token,
		Status:     status,
		Method:     payload.Payment.Method,
		Total:      payload.Payment.TotalValue,
		OccurredAt: c.now(),
	})
	if err != nil {
		c.logger(ctx, "checkout.event.publish_failed", c.logFields(map[string]any{
			"type":  string(kind),
			"error": err.Error(),
		}))
	}
}

func (c *Controller) stopPix() {
	c.pixTimer.Stop()
	c.pixTimer = nil
}

func (c *Controller) stopTimers() {
	c.stopPix()
	c.redirect.Stop()
}

func (c *Controller) touch() {
	c.lastActivity = c.now()
}

func (c *Controller) totalLocked() float64 {
	total := c.offer.OfferPrice
	if c.upsellTaken {
		total += c.offer.UpsellPrice
	}
	return fields.RoundCents(total)
}

func (c *Controller) upsellValue() float64 {
	if c.upsellTaken {
		return c.offer.UpsellPrice
	}
	return 0
}

func (c *Controller) logFields(extra map[string]any) map[string]any {
	out := map[string]any{"phase": string(c.phase)}
	if c.id != "" {
		out["session_id"] = c.id
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:   c.id,
		Phase:       c.phase,
		ErrorReason: c.errorReason,
		Submitting:  c.busy,
	}
	if c.phase == PhaseError || c.phase == PhaseLoading {
		return snap
	}

	offer := c.offer
	snap.Offer = &offer
	snap.Customer = &CustomerView{
		Name:  c.customer.Name,
		Email: c.customer.Email,
		Phone: c.customer.Phone,
	}
	if digits := fields.Digits(c.customer.TaxID); digits != "" {
		snap.Customer.TaxID = observability.MaskTaxID(digits)
	}
	snap.UpsellDecided = c.upsellSet
	snap.UpsellAccepted = c.upsellTaken
	snap.Total = c.totalLocked()
	snap.TotalFormatted = fields.FormatCurrency(snap.Total)

	if c.phase == PhasePayment {
		snap.Installments = installments.Calculate(snap.Total)
		if c.pix != nil {
			remaining := c.pix.ExpiresAt.Sub(c.now())
			snap.Pix = &PixView{
				Code:             c.pix.Code,
				ExpiresAt:        c.pix.ExpiresAt,
				RemainingSeconds: ceilSeconds(remaining),
				Expired:          c.pixExpired.Load() || remaining <= 0,
			}
		}
	}
	if c.phase == PhaseConfirmed && c.redirect != nil {
		snap.Redirect = &RedirectView{
			URL:              c.settings.RedirectURL,
			RemainingSeconds: ceilSeconds(c.redirect.Remaining()),
		}
	}
	if c.notification != nil {
		n := *c.notification
		snap.Notification = &n
	}
	return snap
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func fieldNames(checks fieldChecks) []string {
	names := make([]string, 0, len(checks))
	for f := range checks {
		names = append(names, string(f))
	}
	return names
}

func validationFields(err error) []string {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return nil
	}
	return fieldNames(vErr.Fields)
}

// cardBrand classifies the intent's card number.
func cardBrand(intent PaymentIntent) cards.Brand {
	return cards.Classify(intent.CardNumber)
}
