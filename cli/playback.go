package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"micli/xiaoai"
)

func newSayCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>...",
		Short: "Make the speaker read text aloud",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return err
			}
			raw, err := session.TTS(cmd.Context(), deviceID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func newPlayCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "play [url]",
		Short: "Resume playback, or play an audio URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return err
			}

			var raw json.RawMessage
			if len(args) == 1 {
				parsed, err := url.Parse(args[0])
				if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
					return fmt.Errorf("%q is not an http(s) URL", args[0])
				}
				raw, err = session.PlayURL(cmd.Context(), deviceID, parsed.String())
				if err != nil {
					return err
				}
			} else {
				var err error
				raw, err = session.SetPlayState(cmd.Context(), deviceID, xiaoai.Play)
				if err != nil {
					return err
				}
			}
			return printJSON(raw)
		},
	}
}

func newPlayStateCommand(rt *Runtime, use, short string, state xiaoai.PlayState) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return err
			}
			raw, err := session.SetPlayState(cmd.Context(), deviceID, state)
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func newPauseCommand(rt *Runtime) *cobra.Command {
	return newPlayStateCommand(rt, "pause", "Pause playback", xiaoai.Pause)
}

func newStopCommand(rt *Runtime) *cobra.Command {
	return newPlayStateCommand(rt, "stop", "Stop playback", xiaoai.Stop)
}

func newVolumeCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "volume <0-100>",
		Short: "Set the speaker volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || volume > 100 {
				return fmt.Errorf("volume must be an integer between 0 and 100, got %q", args[0])
			}

			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return err
			}
			raw, err := session.SetVolume(cmd.Context(), deviceID, uint32(volume))
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func newAskCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <text>...",
		Short: "Send a question to the assistant as if spoken to the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return err
			}
			raw, err := session.NLP(cmd.Context(), deviceID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func newUbusCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ubus <path> <method> <message>",
		Short: "Invoke a raw ubus method on the device",
		Long: `Invoke an OpenWrt ubus method on the device, e.g.

  micli ubus mediaplayer player_get_play_status {}

The message must be a JSON object.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := json.RawMessage(args[2])
			if !json.Valid(message) {
				return fmt.Errorf("message %q is not valid JSON", args[2])
			}

			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}
			session, err := rt.Session()
			if err != nil {
				return err
			}
			raw, err := session.UbusCall(cmd.Context(), deviceID, args[0], args[1], message)
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}
