package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"micli/config"
	"micli/conversation"
	"micli/storage"
	"micli/ui"
)

func newHistoryCommand(rt *Runtime, cfg *config.Config) *cobra.Command {
	var (
		limit   uint32
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the device's conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := rt.ResolveDeviceID(cmd.Context())
			if err != nil {
				return err
			}

			if offline {
				return showArchivedHistory(cfg, deviceID, int(limit))
			}

			// The history endpoint is keyed by hardware model, so the
			// device-list snapshot is needed even with an explicit ID.
			devices, err := rt.Devices(cmd.Context())
			if err != nil {
				return err
			}
			var hardware string
			for _, device := range devices {
				if device.DeviceID == deviceID {
					hardware = device.Hardware
					break
				}
			}
			if hardware == "" {
				return fmt.Errorf("no device %q is bound to this account", deviceID)
			}

			session, err := rt.Session()
			if err != nil {
				return err
			}
			data, decodeErrs, err := session.Conversations(cmd.Context(), deviceID, hardware, time.Now(), limit)
			if err != nil {
				return err
			}
			for _, decodeErr := range decodeErrs {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[history] skipping record: %v", decodeErr)
				}
			}
			if len(decodeErrs) > 0 {
				fmt.Fprintln(os.Stderr, ui.DimStyle.Render(
					fmt.Sprintf("skipped %d record(s) the server sent malformed", len(decodeErrs))))
			}

			if cfg.ArchiveHistory {
				archiveRecords(cfg, deviceID, data.Records)
			}

			printRecords(data.Records)
			return nil
		},
	}

	cmd.Flags().Uint32VarP(&limit, "limit", "n", 1, "maximum number of records")
	cmd.Flags().BoolVar(&offline, "offline", false, "read from the local archive instead of the server")
	return cmd
}

func showArchivedHistory(cfg *config.Config, deviceID string, limit int) error {
	archive, err := storage.OpenHistoryArchive(cfg.DataDir())
	if err != nil {
		return err
	}
	defer archive.Close()

	records, err := archive.Recent(deviceID, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(ui.DimStyle.Render("nothing archived for this device yet"))
		return nil
	}
	printRecords(records)
	return nil
}

// archiveRecords is best-effort: the command's output is the fetch itself,
// so archive trouble is logged, not fatal.
func archiveRecords(cfg *config.Config, deviceID string, records []conversation.Record) {
	archive, err := storage.OpenHistoryArchive(cfg.DataDir())
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[history] archive unavailable: %v", err)
		}
		return
	}
	defer archive.Close()

	if err := archive.Save(deviceID, records); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[history] archiving failed: %v", err)
	}
}

func printRecords(records []conversation.Record) {
	width := terminalWidth()
	for i, record := range records {
		if i != 0 {
			fmt.Println()
		}
		printRecord(record, width)
	}
}

func printRecord(record conversation.Record, width int) {
	fmt.Printf("%s %s\n", ui.QueryStyle.Render("Query: "), record.Query)

	// Like the app, show the first answer; most records have exactly one.
	if len(record.Answers) > 0 {
		answer := record.Answers[0]
		fmt.Printf("%s %s", ui.LabelStyle.Render("Answer:"), renderAnswer(answer, width))
		fmt.Printf("%s %s\n", ui.LabelStyle.Render("Kind:  "), answer.Kind)
	}

	fmt.Printf("%s %s\n", ui.LabelStyle.Render("ID:    "), record.RequestID)
	fmt.Printf("%s %s\n", ui.LabelStyle.Render("Time:  "),
		record.Time.Time().Local().Format("2006-01-02 15:04:05"))
}

func renderAnswer(answer conversation.Answer, width int) string {
	switch payload := answer.Payload.(type) {
	case conversation.TTS:
		return payload.Text + "\n"
	case conversation.LLM:
		// Model replies tend to be markdown; render them as such.
		return "\n" + string(markdown.Render(payload.Text, width, 2))
	case conversation.Unknown:
		pretty, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "(unrenderable payload)\n"
		}
		return "\n" + string(pretty) + "\n"
	}
	return "\n"
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
