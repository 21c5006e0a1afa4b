package cli

import (
	"fmt"

	"github.com/ashureev/bpb-coach/internal/illustration"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "illustrations [exercise...]",
		Short: "List or resolve exercise illustrations",
		Long: "Without arguments, list every stored exercise binding. With exercise names, " +
			"print each stored binding or the stock gallery image the name would receive.",
		RunE: runIllustrations,
	}

	RootCmd.AddCommand(cmd)
}

type illustrationRow struct {
	Exercise string `json:"exercise"`
	Ref      string `json:"ref"`
	Source   string `json:"source"`
	Stored   bool   `json:"stored"`
}

func runIllustrations(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	records, err := s.ListIllustrations(cmd.Context())
	if err != nil {
		return fmt.Errorf("list illustrations: %w", err)
	}
	binder, err := illustration.NewBinder(illustration.Config{})
	if err != nil {
		return err
	}
	binder.Load(records)

	var rows []illustrationRow
	if len(args) == 0 {
		for _, rec := range records {
			rows = append(rows, illustrationRow{Exercise: rec.Token, Ref: rec.Ref, Source: string(rec.Source), Stored: true})
		}
	}
	for _, name := range args {
		if rec, ok := binder.Lookup(name); ok {
			rows = append(rows, illustrationRow{Exercise: name, Ref: rec.Ref, Source: string(rec.Source), Stored: true})
			continue
		}
		rows = append(rows, illustrationRow{Exercise: name, Ref: binder.FallbackFor(name), Source: "gallery"})
	}

	out := cmd.OutOrStdout()
	if !textOutput() {
		return printJSON(out, rows)
	}
	for _, r := range rows {
		state := "unbound"
		if r.Stored {
			state = "bound"
		}
		ref := r.Ref
		if media.IsDataURL(ref) {
			ref = "[inline image]"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.Exercise, state, r.Source, ref)
	}
	return nil
}
