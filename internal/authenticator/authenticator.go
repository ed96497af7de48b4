// Package authenticator enforces remote risk decisions on login attempts.
//
// The authenticator holds no local risk logic: it builds the entity id,
// fetches the SaaS verdict, and maps it onto exactly one of three terminal
// outcomes per attempt. When the SaaS is unreachable, the configured
// fallback policy decides between fail-open and fail-closed.
package authenticator

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/humifortis/keycloak-connector/internal/event"
	"github.com/humifortis/keycloak-connector/internal/logging"
	"github.com/humifortis/keycloak-connector/internal/metrics"
	"github.com/humifortis/keycloak-connector/internal/risk"
	"github.com/humifortis/keycloak-connector/internal/traces"
)

// Outcome is the terminal result of evaluating one login attempt.
type Outcome string

const (
	// OutcomeSuccess lets the attempt proceed.
	OutcomeSuccess Outcome = "success"
	// OutcomeChallenge delegates to the next factor in the flow (OTP,
	// WebAuthn); it neither allows nor denies by itself.
	OutcomeChallenge Outcome = "challenge"
	// OutcomeDenied rejects the attempt.
	OutcomeDenied Outcome = "denied"
)

// User-facing messages when the SaaS does not supply one.
const (
	DefaultBlockedMessage     = "Your account has been temporarily locked due to suspicious activity."
	DefaultUnavailableMessage = "Access temporarily unavailable. Please try again later."
)

// User is the principal the flow has already identified.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Attempt is one login attempt presented for evaluation.
type Attempt struct {
	Realm string `json:"realm"`
	User  *User  `json:"user"`
}

// Page carries the data the host renders when an attempt is denied.
type Page struct {
	Status    int    `json:"status"` // 403 for blocks, 503 for unavailable
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
	RiskScore *int   `json:"risk_score,omitempty"`
}

// Result is the verdict returned to the flow. Page is set only for denials.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Page    *Page   `json:"page,omitempty"`
}

// DecisionClient fetches a risk verdict for an entity.
type DecisionClient interface {
	GetRiskDecision(ctx context.Context, entityID string) (*risk.Decision, error)
}

// BlockReporter emits the auth_login_blocked telemetry event.
type BlockReporter interface {
	SendBlockEventAsync(entityID string, d *risk.Decision)
}

// InitFunc builds the authenticator's dependencies. It is called lazily on
// the first attempt; if it fails, that attempt takes the fallback path and
// the next attempt retries initialization. fallbackAllow is read once here.
type InitFunc func() (DecisionClient, BlockReporter, bool, error)

// Authenticator evaluates login attempts against the SaaS.
type Authenticator struct {
	initFn InitFunc

	mu            sync.Mutex
	client        DecisionClient
	reporter      BlockReporter
	fallbackAllow bool
}

// New creates an authenticator that initializes its client via initFn on
// first use.
func New(initFn InitFunc) *Authenticator {
	return &Authenticator{initFn: initFn}
}

// Authenticate evaluates one attempt and always resolves it to exactly one
// outcome. Unidentified attempts pass through: this authenticator only
// evaluates identified principals.
func (a *Authenticator) Authenticate(ctx context.Context, attempt *Attempt) Result {
	logger := logging.L(ctx)

	if attempt.User == nil {
		logger.Warn("risk check skipped: no user in attempt", "realm", attempt.Realm)
		return a.resolve(OutcomeSuccess, nil)
	}

	if err := a.ensureInitialized(); err != nil {
		logger.Error("failed to initialize SaaS client", "error", err)
		return a.fallback(logger, "configuration error")
	}

	entityID := event.EntityID(attempt.Realm, identifier(attempt.User))

	ctx, span := traces.StartSpan(ctx, "authenticator.Authenticate",
		traces.Realm(attempt.Realm), traces.EntityID(entityID))
	defer span.End()

	decision, err := a.client.GetRiskDecision(ctx, entityID)
	if err != nil {
		logger.Error("failed to get decision from SaaS", "entity_id", entityID, "error", err)
		return a.fallback(logger, "service unavailable")
	}

	score, hasScore := decision.RiskScore()

	switch decision.Action {
	case risk.ActionAllow:
		logger.Debug("risk decision: allow", "entity_id", entityID)
		return a.resolve(OutcomeSuccess, nil)

	case risk.ActionChallengeMFA:
		logger.Info("risk decision: challenge MFA", "entity_id", entityID, "risk_score", score)
		return a.resolve(OutcomeChallenge, nil)

	case risk.ActionBlock:
		logger.Warn("risk decision: block",
			"entity_id", entityID,
			"risk_score", score,
			"reason", decision.Reason,
		)

		// Telemetry for the block, detached from the login flow. A sink
		// failure never alters the denied outcome.
		a.reporter.SendBlockEventAsync(entityID, decision)

		page := &Page{
			Status:  http.StatusForbidden,
			Message: decision.MessageToUser,
			Reason:  decision.Reason,
		}
		if page.Message == "" {
			page.Message = DefaultBlockedMessage
		}
		if hasScore {
			page.RiskScore = &score
		}
		return a.resolve(OutcomeDenied, page)

	default:
		// The client validates actions on parse, so this is unreachable with
		// a well-behaved client; treat it like a service failure if it happens.
		logger.Error("unknown decision action", "entity_id", entityID, "action", decision.Action)
		return a.fallback(logger, "protocol error")
	}
}

// ensureInitialized builds the client on first use. Concurrent first
// attempts serialize here; a failed init leaves the authenticator
// uninitialized so the next attempt retries.
func (a *Authenticator) ensureInitialized() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return nil
	}

	client, reporter, fallbackAllow, err := a.initFn()
	if err != nil {
		return err
	}
	a.client = client
	a.reporter = reporter
	a.fallbackAllow = fallbackAllow
	return nil
}

// fallback resolves an attempt when no decision could be obtained. Before a
// successful init the policy is unknown and the attempt fails closed.
func (a *Authenticator) fallback(logger *slog.Logger, reason string) Result {
	a.mu.Lock()
	fallbackAllow := a.fallbackAllow
	a.mu.Unlock()

	if fallbackAllow {
		logger.Warn("risk fallback: allowing access", "reason", reason)
		metrics.FallbacksTotal.WithLabelValues("open").Inc()
		return a.resolve(OutcomeSuccess, nil)
	}

	logger.Warn("risk fallback: denying access", "reason", reason)
	metrics.FallbacksTotal.WithLabelValues("closed").Inc()
	return a.resolve(OutcomeDenied, &Page{
		Status:  http.StatusServiceUnavailable,
		Message: DefaultUnavailableMessage,
	})
}

func (a *Authenticator) resolve(outcome Outcome, page *Page) Result {
	metrics.AuthOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	return Result{Outcome: outcome, Page: page}
}

// identifier picks the entity identifier for the auth path: email when
// present, username otherwise.
func identifier(u *User) string {
	if u.Email != "" {
		return u.Email
	}
	return u.Username
}
