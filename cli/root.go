// Package cli implements the micli command tree and the per-invocation
// runtime behind it.
package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"micli/config"
	"micli/ui"
)

// Execute runs one invocation and terminates the process on failure. Every
// error bubbles up here; nothing below retries or recovers.
func Execute(version string) {
	if err := run(version); err != nil {
		if errors.Is(err, ui.ErrCancelled) {
			// User backed out of a prompt; no diagnostics needed.
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render("error:")+" "+err.Error())
		os.Exit(1)
	}
}

func run(version string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	config.InitDebugLog(cfg.DataDir())

	rt := newRuntime(cfg)
	return newRootCommand(rt, cfg, version).Execute()
}

func newRootCommand(rt *Runtime, cfg *config.Config, version string) *cobra.Command {
	var authFile string

	root := &cobra.Command{
		Use:     "micli",
		Short:   "Control Xiaomi AI speakers from the terminal",
		Version: version,
		Long: `micli talks to the Xiaomi cloud on behalf of your account: list the
speakers bound to it, make them speak or play audio, adjust volume, ask the
assistant questions, and read back the conversation history.

Run "micli login" once to store credentials, then any other command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if authFile != "" {
				cfg.AuthFile = config.ExpandPath(authFile)
			}
		},
	}

	root.PersistentFlags().StringVar(&authFile, "auth-file", "", "path to the auth file (default <data_dir>/auth.json)")
	root.PersistentFlags().StringVarP(&rt.explicitDevice, "device-id", "d", "", "target device ID (skips device lookup)")

	root.AddCommand(
		newLoginCommand(rt, cfg),
		newDevicesCommand(rt),
		newSayCommand(rt),
		newPlayCommand(rt),
		newPauseCommand(rt),
		newStopCommand(rt),
		newVolumeCommand(rt),
		newAskCommand(rt),
		newHistoryCommand(rt, cfg),
		newUbusCommand(rt),
	)
	return root
}

// printJSON pretty-prints a raw server response, the common tail of every
// command that performs one remote operation.
func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON after all; show it as-is.
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
