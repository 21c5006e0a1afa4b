package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ashureev/bpb-coach/internal/plan"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Split a coach reply into sections",
		Long:  "Parse a coach reply read from a file (or stdin when omitted) and print its sections and exercise names.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runParse,
	}

	cmd.Flags().StringP("marker", "m", plan.DefaultTrainingMarker, "Heading text that marks the training program")

	RootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	marker, _ := cmd.Flags().GetString("marker")

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open reply: %w", err)
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	sections := plan.NewParser(marker).Parse(string(raw))
	out := cmd.OutOrStdout()
	if !textOutput() {
		return printJSON(out, sections)
	}
	for _, s := range sections {
		fmt.Fprintf(out, "[%d] %s (%s)\n", s.Ordinal, s.Title, s.Kind)
		for _, l := range s.RenderBody() {
			fmt.Fprintf(out, "    %s\n", l.Text)
		}
		if tokens := s.UniqueTokens(); len(tokens) > 0 {
			fmt.Fprintf(out, "    exercises: %v\n", tokens)
		}
	}
	return nil
}
