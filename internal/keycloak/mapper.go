package keycloak

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/humifortis/keycloak-connector/internal/event"
)

// ErrMissingRealm is returned when an event carries no realm. The realm is
// the only structurally required field; everything else is optional.
var ErrMissingRealm = errors.New("keycloak: event has no realm")

// canonicalTypes maps each known Keycloak event kind to its canonical tag.
// Kept as data so new kinds need no control-flow change: anything missing
// here falls back to "auth_" + the lowercased native name, which makes the
// mapping total.
var canonicalTypes = map[EventType]string{
	EventLogin:                "auth_login_success",
	EventLoginError:           "auth_login_failed",
	EventLogout:               "auth_logout",
	EventRegister:             "auth_register",
	EventUpdatePassword:       "auth_password_update",
	EventUpdateEmail:          "auth_email_update",
	EventVerifyEmail:          "auth_email_verify",
	EventResetPassword:        "auth_password_reset",
	EventResetPasswordError:   "auth_password_reset_failed",
	EventCodeToToken:          "auth_token_exchange",
	EventCodeToTokenError:     "auth_token_exchange_failed",
	EventRefreshToken:         "auth_token_refresh",
	EventRefreshTokenError:    "auth_token_refresh_failed",
	EventIntrospectToken:      "auth_token_introspect",
	EventIntrospectTokenError: "auth_token_introspect_failed",
	EventRevokeGrant:          "auth_grant_revoked",
	EventUpdateTOTP:           "auth_totp_update",
	EventRemoveTOTP:           "auth_totp_remove",
	EventSendVerifyEmail:      "auth_verify_email_sent",
	EventSendResetPassword:    "auth_reset_password_sent",
	EventDeleteAccount:        "auth_account_deleted",
}

// forwardedDetails is the allow-list of event detail fields copied into
// metadata. Everything else is dropped so unreviewed PII never leaves the
// provider.
var forwardedDetails = []string{"username", "email"}

// CanonicalEventType returns the canonical tag for a native event kind.
// Never fails: unknown kinds get the lowercase fallback.
func CanonicalEventType(t EventType) string {
	if c, ok := canonicalTypes[t]; ok {
		return c
	}
	return "auth_" + strings.ToLower(string(t))
}

// FromEvent translates an end-user event into a canonical event. Pure: the
// same input always yields the same output.
func FromEvent(ev *Event) (*event.Event, error) {
	if ev.RealmID == "" {
		return nil, ErrMissingRealm
	}

	identifier := ev.UserID
	if identifier == "" {
		identifier = "anonymous"
	}

	md := event.NewMetadata()
	md.SetString("realm", ev.RealmID)
	if ev.ClientID != "" {
		md.SetString("client_id", ev.ClientID)
	}
	if ev.IPAddress != "" {
		md.SetString("ip", ev.IPAddress)
	}
	if ev.Error != "" {
		md.SetString("error", ev.Error)
	}
	if ev.SessionID != "" {
		md.SetString("session_id", ev.SessionID)
	}
	md.SetString("keycloak_event_id", fmt.Sprintf("%d_%s", ev.Time, ev.Type))
	for _, key := range forwardedDetails {
		if v, ok := ev.Details[key]; ok {
			md.SetString(key, v)
		}
	}

	return &event.Event{
		EntityID:   event.EntityID(ev.RealmID, identifier),
		EntityType: event.EntityTypeUser,
		EventType:  CanonicalEventType(ev.Type),
		Source:     event.Source,
		Timestamp:  event.FormatTimestamp(time.UnixMilli(ev.Time)),
		Metadata:   md,
	}, nil
}

// FromAdminEvent translates an administrative event. The acting admin's user
// id becomes the entity identifier; "admin" when auth details are absent.
func FromAdminEvent(ae *AdminEvent) (*event.Event, error) {
	if ae.RealmID == "" {
		return nil, ErrMissingRealm
	}

	identifier := "admin"
	if ae.AuthDetails != nil && ae.AuthDetails.UserID != "" {
		identifier = ae.AuthDetails.UserID
	}

	md := event.NewMetadata()
	md.SetString("realm", ae.RealmID)
	md.SetString("resource_type", ae.ResourceType)
	md.SetString("resource_path", ae.ResourcePath)
	if ae.Error != "" {
		md.SetString("error", ae.Error)
	}

	return &event.Event{
		EntityID:   event.EntityID(ae.RealmID, identifier),
		EntityType: event.EntityTypeUser,
		EventType:  "admin_" + strings.ToLower(ae.OperationType),
		Source:     event.Source,
		Timestamp:  event.FormatTimestamp(time.UnixMilli(ae.Time)),
		Metadata:   md,
	}, nil
}
