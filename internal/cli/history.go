package cli

import (
	"fmt"

	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a stored conversation",
		RunE:  runHistory,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("session", "s", "", "Session ID (required)")
	cmd.Flags().IntP("last", "n", 0, "Only the last N messages (0 = all)")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	sessionID, _ := cmd.Flags().GetString("session")
	last, _ := cmd.Flags().GetInt("last")

	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	msgs, err := s.ListMessages(cmd.Context(), domain.ConversationKey{UserID: userID, SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	if last > 0 {
		msgs = domain.RecentMessages(msgs, last)
	}

	out := cmd.OutOrStdout()
	if !textOutput() {
		return printJSON(out, msgs)
	}
	for _, m := range msgs {
		fmt.Fprintf(out, "#%d %s %s\n", m.Seq, m.Role, m.CreatedAt.Format("2006-01-02 15:04:05"))
		if len(m.Images) > 0 {
			fmt.Fprintf(out, "(%d image(s))\n", len(m.Images))
		}
		fmt.Fprintln(out, m.Content)
		fmt.Fprintln(out)
	}
	return nil
}
