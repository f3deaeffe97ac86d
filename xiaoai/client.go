// Package xiaoai is a client for the Xiaomi MiNA speaker service: account
// login, device listing, remote ubus calls and conversation history.
package xiaoai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"micli/conversation"
)

const (
	defaultAPIBase     = "https://mina.mi.com"
	defaultProfileBase = "https://userprofile.mina.mi.com"
)

// Client talks to the MiNA service on behalf of one authenticated account.
type Client struct {
	auth Auth
	http *http.Client

	// APIBase and ProfileBase exist so tests can point the client at a
	// local server. Leave them alone otherwise.
	APIBase     string
	ProfileBase string
}

// NewClient creates a client from a previously saved Auth.
func NewClient(auth Auth) *Client {
	return &Client{
		auth:        auth,
		http:        &http.Client{Timeout: 15 * time.Second},
		APIBase:     defaultAPIBase,
		ProfileBase: defaultProfileBase,
	}
}

// Auth returns the credential blob the client was built from.
func (c *Client) Auth() Auth {
	return c.auth
}

// requestID mimics the app's per-request identifier.
func requestID() string {
	return "app_ios_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.AddCookie(&http.Cookie{Name: "userId", Value: strconv.FormatInt(c.auth.UserID, 10)})
	req.AddCookie(&http.Cookie{Name: "serviceToken", Value: c.auth.ServiceToken})
	req.AddCookie(&http.Cookie{Name: "deviceId", Value: c.auth.DeviceID})
	return req, nil
}

// do executes the request and unwraps the {code, message, data} envelope.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calling %s: unexpected status %s", req.URL.Path, resp.Status)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	if envelope.Code != 0 {
		return nil, &APIError{Code: envelope.Code, Message: envelope.Message}
	}
	return envelope.Data, nil
}

func (c *Client) get(ctx context.Context, base, path string, query url.Values) (json.RawMessage, error) {
	query.Set("requestId", requestID())
	req, err := c.newRequest(ctx, http.MethodGet, base+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	form.Set("requestId", requestID())
	req, err := c.newRequest(ctx, http.MethodPost, c.APIBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// DeviceInfo lists the speakers bound to the account.
func (c *Client) DeviceInfo(ctx context.Context) ([]DeviceInfo, error) {
	data, err := c.get(ctx, c.APIBase, "/admin/v2/device_list", url.Values{"master": {"0"}})
	if err != nil {
		return nil, err
	}
	var devices []DeviceInfo
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("decoding device list: %w", err)
	}
	return devices, nil
}

// UbusCall invokes a ubus method on the device and returns the raw result.
func (c *Client) UbusCall(ctx context.Context, deviceID, path, method string, message any) (json.RawMessage, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encoding ubus message: %w", err)
	}
	return c.postForm(ctx, "/remote/ubus", url.Values{
		"deviceId": {deviceID},
		"path":     {path},
		"method":   {method},
		"message":  {string(payload)},
	})
}

// TTS makes the device speak the given text.
func (c *Client) TTS(ctx context.Context, deviceID, text string) (json.RawMessage, error) {
	return c.UbusCall(ctx, deviceID, "mibrain", "text_to_speech", map[string]any{
		"text": text,
	})
}

// NLP sends text to the assistant as if it had been spoken to the device.
func (c *Client) NLP(ctx context.Context, deviceID, text string) (json.RawMessage, error) {
	return c.UbusCall(ctx, deviceID, "mibrain", "ai_service", map[string]any{
		"nlp":      1,
		"nlp_text": text,
		"tts":      1,
	})
}

// PlayURL starts playback of an audio URL.
func (c *Client) PlayURL(ctx context.Context, deviceID, audioURL string) (json.RawMessage, error) {
	return c.UbusCall(ctx, deviceID, "mediaplayer", "player_play_url", map[string]any{
		"url":   audioURL,
		"type":  1,
		"media": "app_ios",
	})
}

// SetPlayState issues a play, pause or stop.
func (c *Client) SetPlayState(ctx context.Context, deviceID string, state PlayState) (json.RawMessage, error) {
	return c.UbusCall(ctx, deviceID, "mediaplayer", "player_play_operation", map[string]any{
		"action": string(state),
		"media":  "app_ios",
	})
}

// SetVolume sets the speaker volume, 0-100.
func (c *Client) SetVolume(ctx context.Context, deviceID string, volume uint32) (json.RawMessage, error) {
	return c.UbusCall(ctx, deviceID, "mediaplayer", "player_set_volume", map[string]any{
		"volume": volume,
		"media":  "app_ios",
	})
}

// Conversations fetches up to limit history records older than before. The
// endpoint double-encodes its payload: the envelope's data field is a JSON
// string that itself contains the records object. Individual records that
// fail to decode are returned in the second value and do not fail the fetch.
func (c *Client) Conversations(ctx context.Context, deviceID, hardware string, before time.Time, limit uint32) (conversation.Data, []error, error) {
	data, err := c.get(ctx, c.ProfileBase, "/device_profile/v2/conversation", url.Values{
		"source":    {"dialogu"},
		"hardware":  {hardware},
		"timestamp": {strconv.FormatInt(before.UnixMilli(), 10)},
		"limit":     {strconv.FormatUint(uint64(limit), 10)},
		"deviceId":  {deviceID},
	})
	if err != nil {
		return conversation.Data{}, nil, err
	}

	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		// Some firmware revisions return the object directly.
		decoded, errs := conversation.DecodeData(data)
		return decoded, errs, nil
	}
	decoded, errs := conversation.DecodeData([]byte(inner))
	return decoded, errs, nil
}
