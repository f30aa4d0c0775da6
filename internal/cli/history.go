package cli

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <room>",
		Short: "Print recent chat of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := newAPI(v.GetString("server")).history(cmd.Context(), args[0], v.GetInt("limit"))
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				pterm.Info.Printfln("No messages in %s", args[0])
				return nil
			}
			for _, m := range msgs {
				printChat(m.Time.Local().Format("15:04:05"), m.User, m.Text)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "number of messages")
	_ = v.BindPFlag("limit", cmd.Flags().Lookup("limit"))
	return cmd
}
