package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
)

var askUser string

var askCmd = &cobra.Command{
	Use:   "ask <message...>",
	Short: "Run one conversational turn and print the response as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.svc.ProcessTurn(cmd.Context(), domain.TurnRequest{
			UserID:  askUser,
			Message: strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "cli", "user id whose session the turn runs in")
}
