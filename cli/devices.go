package cli

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"micli/ui"
)

func newDevicesCommand(rt *Runtime) *cobra.Command {
	var copyID bool

	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"device"},
		Short:   "List the speakers bound to the account",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := rt.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				return ErrNoDevices
			}

			for i, device := range devices {
				if i != 0 {
					fmt.Println()
				}
				fmt.Printf("%s %s\n", ui.LabelStyle.Render("Name:    "), device.Name)
				fmt.Printf("%s %s\n", ui.LabelStyle.Render("ID:      "), device.DeviceID)
				fmt.Printf("%s %s\n", ui.LabelStyle.Render("Hardware:"), device.Hardware)
			}

			if copyID {
				id, err := rt.ResolveDeviceID(cmd.Context())
				if err != nil {
					return err
				}
				if err := clipboard.WriteAll(id); err != nil {
					return fmt.Errorf("copying device ID: %w", err)
				}
				fmt.Println()
				fmt.Println(ui.DimStyle.Render("copied " + id + " to clipboard"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&copyID, "copy", "c", false, "copy the resolved device ID to the clipboard")
	return cmd
}
