package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"micli/config"
	"micli/conversation"
	"micli/ui"
	"micli/xiaoai"
)

// ErrNoDevices means the account has no speaker bound to it. This is not a
// transport failure: the fix is binding a device in the Mi Home app.
var ErrNoDevices = errors.New("no devices bound to this account (add one in the Mi Home app)")

// Service is the remote surface the commands consume. *xiaoai.Client is the
// production implementation; tests substitute a mock.
type Service interface {
	DeviceInfo(ctx context.Context) ([]xiaoai.DeviceInfo, error)
	UbusCall(ctx context.Context, deviceID, path, method string, message any) (json.RawMessage, error)
	TTS(ctx context.Context, deviceID, text string) (json.RawMessage, error)
	NLP(ctx context.Context, deviceID, text string) (json.RawMessage, error)
	PlayURL(ctx context.Context, deviceID, audioURL string) (json.RawMessage, error)
	SetPlayState(ctx context.Context, deviceID string, state xiaoai.PlayState) (json.RawMessage, error)
	SetVolume(ctx context.Context, deviceID string, volume uint32) (json.RawMessage, error)
	Conversations(ctx context.Context, deviceID, hardware string, before time.Time, limit uint32) (conversation.Data, []error, error)
}

// cell memoizes one initializer outcome. sync.Once covers the whole
// in-flight span, so every caller - including ones that arrive while the
// first is still blocked on the network - observes the single result,
// success or failure.
type cell[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (c *cell[T]) get(init func() (T, error)) (T, error) {
	c.once.Do(func() {
		c.value, c.err = init()
	})
	return c.value, c.err
}

// Runtime holds the per-invocation state shared by all commands: one
// session, one device-list snapshot, one resolved target device. Each is
// created lazily on first use and never refreshed.
type Runtime struct {
	// explicitDevice is the -d/--device-id flag; defaultDevice comes from
	// settings. Either short-circuits device resolution entirely.
	explicitDevice string
	defaultDevice  string

	// open loads the credential blob and builds the remote client.
	open func() (Service, error)

	// selectDevice asks the user to pick one of several devices and
	// returns its index.
	selectDevice func(devices []xiaoai.DeviceInfo) (int, error)

	session cell[Service]
	devices cell[[]xiaoai.DeviceInfo]
	target  cell[string]
}

func newRuntime(cfg *config.Config) *Runtime {
	return &Runtime{
		defaultDevice: cfg.DefaultDeviceID,
		open: func() (Service, error) {
			store, err := openAuthStore(cfg)
			if err != nil {
				return nil, err
			}
			auth, err := store.Load()
			if err != nil {
				return nil, err
			}
			return xiaoai.NewClient(auth), nil
		},
		selectDevice: func(devices []xiaoai.DeviceInfo) (int, error) {
			options := make([]ui.Option, len(devices))
			for i, device := range devices {
				options[i] = ui.Option{
					Label:  device.Name,
					Detail: fmt.Sprintf("%s · %s", device.DeviceID, device.Hardware),
				}
			}
			return ui.Select("Target device?", options)
		},
	}
}

// Session returns the authenticated remote client, loading credentials on
// the first call only.
func (r *Runtime) Session() (Service, error) {
	return r.session.get(r.open)
}

// Devices returns the device-list snapshot, fetching it on the first call
// only. Requires a working session.
func (r *Runtime) Devices(ctx context.Context) ([]xiaoai.DeviceInfo, error) {
	return r.devices.get(func() ([]xiaoai.DeviceInfo, error) {
		session, err := r.Session()
		if err != nil {
			return nil, err
		}
		devices, err := session.DeviceInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching device list: %w", err)
		}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[runtime] fetched %d device(s)", len(devices))
		}
		return devices, nil
	})
}

// ResolveDeviceID determines the target device for this invocation.
//
// An explicit -d flag (or configured default) wins and touches neither the
// session nor the device list, so commands keep working through transient
// listing failures. Otherwise the snapshot is consulted: an empty account
// fails with ErrNoDevices, a single device is picked automatically, and
// several devices go to the interactive selector, which runs at most once
// per invocation.
func (r *Runtime) ResolveDeviceID(ctx context.Context) (string, error) {
	return r.target.get(func() (string, error) {
		if r.explicitDevice != "" {
			return r.explicitDevice, nil
		}
		if r.defaultDevice != "" {
			return r.defaultDevice, nil
		}

		devices, err := r.Devices(ctx)
		if err != nil {
			return "", err
		}
		switch len(devices) {
		case 0:
			return "", ErrNoDevices
		case 1:
			return devices[0].DeviceID, nil
		}

		choice, err := r.selectDevice(devices)
		if err != nil {
			return "", err
		}
		return devices[choice].DeviceID, nil
	})
}

// openAuthStore builds the auth store the settings describe, prompting for
// the SSH key passphrase when one is needed.
func openAuthStore(cfg *config.Config) (*config.AuthStore, error) {
	return config.NewAuthStoreFromConfig(cfg, func(keyPath string) (string, error) {
		return ui.PromptPassword(fmt.Sprintf("Passphrase for %s:", keyPath))
	})
}
