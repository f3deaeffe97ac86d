package xiaoai

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	accountBase = "https://account.xiaomi.com"

	// sid identifies the MiNA service to the account server.
	sid = "micoapi"

	// jsonPrefix guards the account server's JSON bodies against naive
	// script inclusion. It has to be stripped before decoding.
	jsonPrefix = "&&&START&&&"
)

// Login performs the Xiaomi account handshake and returns an authenticated
// client. The resulting Auth (Client.Auth) should be saved for later runs.
//
// The handshake is three requests against account.xiaomi.com:
//  1. serviceLogin collects the signing parameters for this service.
//  2. serviceLoginAuth2 submits the account and hashed password, yielding
//     ssecurity, the user ID, a nonce and a follow-up location.
//  3. Following the location (signed with the nonce and ssecurity) sets the
//     serviceToken cookie that authenticates all later API calls.
func Login(ctx context.Context, username, password string) (*Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	clientDeviceID := uuid.NewString()

	params, err := fetchLoginParams(ctx, httpClient, clientDeviceID)
	if err != nil {
		return nil, fmt.Errorf("starting login: %w", err)
	}

	auth2, err := submitCredentials(ctx, httpClient, clientDeviceID, username, password, params)
	if err != nil {
		return nil, fmt.Errorf("authenticating %q: %w", username, err)
	}

	serviceToken, err := fetchServiceToken(ctx, httpClient, auth2)
	if err != nil {
		return nil, fmt.Errorf("obtaining service token: %w", err)
	}

	return NewClient(Auth{
		UserID:       auth2.UserID,
		SSecurity:    auth2.SSecurity,
		ServiceToken: serviceToken,
		DeviceID:     clientDeviceID,
	}), nil
}

type loginParams struct {
	Sign     string `json:"_sign"`
	QS       string `json:"qs"`
	Callback string `json:"callback"`
}

type auth2Result struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	SSecurity   string `json:"ssecurity"`
	UserID      int64  `json:"userId"`
	Nonce       int64  `json:"nonce"`
	Location    string `json:"location"`
	PassToken   string `json:"passToken"`
}

func decodePrefixed(body io.Reader, v any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(string(raw)), jsonPrefix)
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("decoding account response: %w", err)
	}
	return nil
}

func fetchLoginParams(ctx context.Context, client *http.Client, deviceID string) (loginParams, error) {
	u := accountBase + "/pass/serviceLogin?" + url.Values{
		"sid":   {sid},
		"_json": {"true"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return loginParams{}, err
	}
	req.AddCookie(&http.Cookie{Name: "deviceId", Value: deviceID})

	resp, err := client.Do(req)
	if err != nil {
		return loginParams{}, err
	}
	defer resp.Body.Close()

	var params loginParams
	if err := decodePrefixed(resp.Body, &params); err != nil {
		return loginParams{}, err
	}
	return params, nil
}

func submitCredentials(ctx context.Context, client *http.Client, deviceID, username, password string, params loginParams) (auth2Result, error) {
	form := url.Values{
		"user":     {username},
		"hash":     {hashPassword(password)},
		"sid":      {sid},
		"_sign":    {params.Sign},
		"qs":       {params.QS},
		"callback": {params.Callback},
		"_json":    {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		accountBase+"/pass/serviceLoginAuth2", strings.NewReader(form.Encode()))
	if err != nil {
		return auth2Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "deviceId", Value: deviceID})

	resp, err := client.Do(req)
	if err != nil {
		return auth2Result{}, err
	}
	defer resp.Body.Close()

	var result auth2Result
	if err := decodePrefixed(resp.Body, &result); err != nil {
		return auth2Result{}, err
	}
	if result.Code != 0 {
		return auth2Result{}, fmt.Errorf("account server rejected login (code %d): %s", result.Code, result.Description)
	}
	if result.Location == "" || result.SSecurity == "" {
		return auth2Result{}, fmt.Errorf("account server response is missing location or ssecurity")
	}
	return result, nil
}

// hashPassword is the uppercase hex MD5 the account server expects.
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password))
	return strings.ToUpper(fmt.Sprintf("%x", sum))
}

// clientSign signs the follow-up request with the nonce and ssecurity, per
// the account server's passport protocol.
func clientSign(nonce int64, ssecurity string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("nonce=%d&%s", nonce, ssecurity)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func fetchServiceToken(ctx context.Context, client *http.Client, auth2 auth2Result) (string, error) {
	u := auth2.Location + "&clientSign=" + url.QueryEscape(clientSign(auth2.Nonce, auth2.SSecurity))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "serviceToken" && cookie.Value != "" {
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("no serviceToken cookie in response")
}
