package cli

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRoomsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List live rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := newAPI(v.GetString("server")).rooms(cmd.Context())
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				pterm.Info.Println("No live rooms")
				return nil
			}
			data := pterm.TableData{{"Room", "Members"}}
			for _, r := range rooms {
				data = append(data, []string{string(r.Room), strconv.Itoa(r.MemberCount)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}
