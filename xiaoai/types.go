package xiaoai

import (
	"encoding/json"
	"fmt"
	"io"
)

// DeviceInfo describes one speaker bound to the account. The set returned
// by Client.DeviceInfo is a snapshot; it is never refreshed within a run.
type DeviceInfo struct {
	// DeviceID identifies the device in every remote operation.
	DeviceID string `json:"deviceID"`

	// SerialNumber is the hardware serial, informational only.
	SerialNumber string `json:"serialNumber"`

	// Name is the display name assigned in the Mi Home app.
	Name string `json:"name"`

	// Hardware is the model string, e.g. "L06A". The conversation-history
	// endpoint keys on it.
	Hardware string `json:"hardware"`
}

// PlayState is a playback control action.
type PlayState string

const (
	Play  PlayState = "play"
	Pause PlayState = "pause"
	Stop  PlayState = "stop"
)

// Auth is the persisted credential blob produced by Login. One Auth is
// loaded per invocation and lives until process exit.
type Auth struct {
	// UserID is the numeric Xiaomi account ID.
	UserID int64 `json:"userId"`

	// SSecurity is the session security key from the login handshake.
	SSecurity string `json:"ssecurity"`

	// ServiceToken authenticates every API call.
	ServiceToken string `json:"serviceToken"`

	// DeviceID is a random per-install client identifier sent alongside
	// requests. Not a speaker ID.
	DeviceID string `json:"deviceId"`
}

// LoadAuth reads an Auth blob from r.
func LoadAuth(r io.Reader) (Auth, error) {
	var auth Auth
	if err := json.NewDecoder(r).Decode(&auth); err != nil {
		return Auth{}, fmt.Errorf("decoding auth blob: %w", err)
	}
	if auth.ServiceToken == "" {
		return Auth{}, fmt.Errorf("auth blob has no service token")
	}
	return auth, nil
}

// Save writes the Auth blob to w.
func (a Auth) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encoding auth blob: %w", err)
	}
	return nil
}

// APIError is a non-zero status in the {code, message, data} envelope every
// MiNA endpoint wraps its responses in.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned code %d: %s", e.Code, e.Message)
}
