package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/bpb-coach/internal/coach"
	"github.com/ashureev/bpb-coach/internal/config"
	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/media"
	"github.com/ashureev/bpb-coach/internal/plan"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cliUserID owns conversations started from the command line.
const cliUserID = "cli"

func init() {
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message to the coach",
		Long: "Send one message (and optional photos) to the coach in a stored conversation " +
			"and print the reply. Uses the same AI configuration as the server.",
		Args: cobra.MaximumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringP("session", "s", "default", "Conversation session ID")
	cmd.Flags().StringSliceP("image", "i", nil, "Photo file to attach (repeatable)")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	sessionID, _ := cmd.Flags().GetString("session")
	imagePaths, _ := cmd.Flags().GetStringSlice("image")

	var text string
	if len(args) == 1 {
		text = args[0]
	}

	images := make([]string, 0, len(imagePaths))
	for _, p := range imagePaths {
		ref, err := media.FileToDataURL(p)
		if err != nil {
			return fmt.Errorf("read image %s: %w", p, err)
		}
		images = append(images, ref)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	client, err := coach.NewGeminiClient(cmd.Context(), cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	svc, err := coach.NewService(coach.Options{
		Collaborator:  client,
		Store:         repo,
		Parser:        plan.NewParser(cfg.AI.TrainingMarker),
		HistoryWindow: cfg.AI.HistoryWindow,
		Temperature:   cfg.AI.Temperature,
		Timeout:       cfg.AI.RequestTimeout,
	})
	if err != nil {
		return err
	}

	return ask(cmd, svc, domain.ConversationKey{UserID: cliUserID, SessionID: sessionID}, text, images)
}

func ask(cmd *cobra.Command, svc *coach.Service, conv domain.ConversationKey, text string, images []string) error {
	res, err := svc.Submit(cmd.Context(), conv, text, images)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !textOutput() {
		return printJSON(out, res)
	}
	fmt.Fprintln(out, strings.TrimSpace(res.Assistant.Content))
	if res.Failed {
		return fmt.Errorf("coach did not answer")
	}
	return nil
}
