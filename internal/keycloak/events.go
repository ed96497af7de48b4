// Package keycloak models the slice of Keycloak's event surface this
// connector consumes and translates it into the canonical schema.
package keycloak

// EventType is a Keycloak user event kind, as spelled by Keycloak itself.
type EventType string

const (
	EventLogin                EventType = "LOGIN"
	EventLoginError           EventType = "LOGIN_ERROR"
	EventLogout               EventType = "LOGOUT"
	EventRegister             EventType = "REGISTER"
	EventUpdatePassword       EventType = "UPDATE_PASSWORD"
	EventUpdateEmail          EventType = "UPDATE_EMAIL"
	EventVerifyEmail          EventType = "VERIFY_EMAIL"
	EventResetPassword        EventType = "RESET_PASSWORD"
	EventResetPasswordError   EventType = "RESET_PASSWORD_ERROR"
	EventCodeToToken          EventType = "CODE_TO_TOKEN"
	EventCodeToTokenError     EventType = "CODE_TO_TOKEN_ERROR"
	EventRefreshToken         EventType = "REFRESH_TOKEN"
	EventRefreshTokenError    EventType = "REFRESH_TOKEN_ERROR"
	EventIntrospectToken      EventType = "INTROSPECT_TOKEN"
	EventIntrospectTokenError EventType = "INTROSPECT_TOKEN_ERROR"
	EventRevokeGrant          EventType = "REVOKE_GRANT"
	EventUpdateTOTP           EventType = "UPDATE_TOTP"
	EventRemoveTOTP           EventType = "REMOVE_TOTP"
	EventSendVerifyEmail      EventType = "SEND_VERIFY_EMAIL"
	EventSendResetPassword    EventType = "SEND_RESET_PASSWORD"
	EventDeleteAccount        EventType = "DELETE_ACCOUNT"
)

// Event is a Keycloak end-user event as delivered by the event bus. Field
// names follow Keycloak's JSON representation.
type Event struct {
	Time      int64             `json:"time"` // epoch milliseconds
	Type      EventType         `json:"type"`
	RealmID   string            `json:"realmId"`
	UserID    string            `json:"userId,omitempty"`
	ClientID  string            `json:"clientId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	IPAddress string            `json:"ipAddress,omitempty"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuthDetails identifies the administrator behind an admin event.
type AuthDetails struct {
	RealmID   string `json:"realmId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
}

// AdminEvent is a Keycloak administrative operation event.
type AdminEvent struct {
	Time           int64        `json:"time"` // epoch milliseconds
	RealmID        string       `json:"realmId"`
	OperationType  string       `json:"operationType"`
	ResourceType   string       `json:"resourceType,omitempty"`
	ResourcePath   string       `json:"resourcePath,omitempty"`
	Error          string       `json:"error,omitempty"`
	AuthDetails    *AuthDetails `json:"authDetails,omitempty"`
	Representation string       `json:"representation,omitempty"`
}
