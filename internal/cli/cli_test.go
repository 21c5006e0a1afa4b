package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/bpb-coach/internal/coach"
	"github.com/ashureev/bpb-coach/internal/domain"
	"github.com/ashureev/bpb-coach/internal/store"
	"github.com/spf13/cobra"
)

const sampleReply = "## Numerical Calculations\nTDEE 2500 kcal\n## Training Program\nDay 1: [Squat] 5x5 ✅\nDay 2: [Bench Press] 3x8\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	dbPath = ""
	formatFlag = "json"

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(io.Discard)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bpb.db")
	repo, err := store.NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	if err := repo.SaveIllustration(ctx, &domain.IllustrationRecord{
		Token: "Squat", Ref: "https://img.example.com/squat.png", Source: domain.SourceGallery, CreatedAt: now,
	}); err != nil {
		t.Fatalf("SaveIllustration: %v", err)
	}

	conv := domain.ConversationKey{UserID: "anon_1", SessionID: "tab-1"}
	for i, m := range []domain.ChatMessage{
		{ID: "m0", Role: domain.RoleUser, Content: "hi coach"},
		{ID: "m1", Role: domain.RoleAssistant, Content: sampleReply},
	} {
		m.Seq = i
		m.CreatedAt = now
		if err := repo.AppendMessage(ctx, conv, &m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	return path
}

func TestParseFromStdinText(t *testing.T) {
	out, err := execute(t, sampleReply, "parse", "--format", "text")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, want := range []string{
		"[0] Numerical Calculations (calculations)",
		"[1] Training Program (training)",
		"Day 1: Squat 5x5 ✅",
		"exercises: [Squat Bench Press]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.md")
	if err := os.WriteFile(path, []byte(sampleReply), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "parse", path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var sections []struct {
		Title    string   `json:"title"`
		Training bool     `json:"training"`
		Tokens   []string `json:"tokens"`
	}
	if err := json.Unmarshal([]byte(out), &sections); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(sections) != 2 || !sections[1].Training || len(sections[1].Tokens) != 2 {
		t.Errorf("unexpected sections: %+v", sections)
	}
}

func TestParseMissingFile(t *testing.T) {
	if _, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "nope.md")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIllustrations(t *testing.T) {
	path := seedStore(t)

	out, err := execute(t, "", "illustrations", "--db", path, "Squat", "Deadlift")
	if err != nil {
		t.Fatalf("illustrations: %v", err)
	}
	var rows []illustrationRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if !rows[0].Stored || rows[0].Ref != "https://img.example.com/squat.png" {
		t.Errorf("stored row = %+v", rows[0])
	}
	if rows[1].Stored || rows[1].Ref == "" || rows[1].Source != "gallery" {
		t.Errorf("fallback row = %+v", rows[1])
	}

	out, err = execute(t, "", "illustrations", "--db", path, "--format", "text")
	if err != nil {
		t.Fatalf("illustrations list: %v", err)
	}
	if !strings.Contains(out, "Squat\tbound\tgallery\thttps://img.example.com/squat.png") {
		t.Errorf("list output = %q", out)
	}
}

func TestHistory(t *testing.T) {
	path := seedStore(t)

	out, err := execute(t, "", "history", "--db", path, "-u", "anon_1", "-s", "tab-1", "-n", "1", "--format", "text")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "#1 assistant") || strings.Contains(out, "hi coach") {
		t.Errorf("history output = %q", out)
	}
}

type cannedCollaborator string

func (c cannedCollaborator) Reply(context.Context, coach.ReplyRequest) (string, error) {
	return string(c), nil
}

func TestAsk(t *testing.T) {
	svc, err := coach.NewService(coach.Options{Collaborator: cannedCollaborator(sampleReply)})
	if err != nil {
		t.Fatal(err)
	}
	formatFlag = "text"
	t.Cleanup(func() { formatFlag = "json" })

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	if err := ask(cmd, svc, domain.ConversationKey{UserID: cliUserID, SessionID: "s"}, "plan please", nil); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out.String(), "## Training Program") {
		t.Errorf("output = %q", out.String())
	}

	if err := ask(cmd, svc, domain.ConversationKey{UserID: cliUserID, SessionID: "s"}, "  ", nil); err == nil {
		t.Error("expected empty submission error")
	}
}
