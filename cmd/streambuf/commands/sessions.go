package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/cli"
	"github.com/haivivi/streambuf/pkg/jsontime"
)

// sessionView is one session in list/inspect output.
type sessionView struct {
	ID      string         `json:"id"`
	Source  string         `json:"source"`
	Started jsontime.Milli `json:"started"`
	Note    string         `json:"note,omitempty"`
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := currentContext()
		if err != nil {
			return err
		}
		store, err := openStore(cc)
		if err != nil {
			return err
		}
		defer store.Close()

		var views []sessionView
		for sess, err := range store.Sessions() {
			if err != nil {
				return err
			}
			views = append(views, sessionView{
				ID:      sess.ID,
				Source:  sess.Source,
				Started: jsontime.Milli(time.UnixMilli(sess.Started)),
				Note:    sess.Note,
			})
		}

		if format, _ := cmd.Flags().GetString("output"); format != "" {
			return emit(format, views)
		}

		if len(views) == 0 {
			cli.PrintInfo("no sessions recorded")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSOURCE\tNOTE")
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				v.ID, v.Started.Time().Format(time.RFC3339), v.Source, v.Note)
		}
		return w.Flush()
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and all its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := currentContext()
		if err != nil {
			return err
		}
		store, err := openStore(cc)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteSession(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("session %s deleted", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.Flags().StringP("output", "o", "", "output format (yaml|json)")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
