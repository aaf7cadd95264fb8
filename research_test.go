package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

func TestPrintEvent(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printEvent(&buf, domain.Event{Type: domain.EventTypeFlowStarted, Query: "AI trends"})
	printEvent(&buf, domain.NewAgentUpdate(domain.AgentInstagram, domain.AgentStatusRunning, "Extracting from 2 sources..."))
	printEvent(&buf, domain.Event{Type: domain.EventTypeHeartbeat})
	printEvent(&buf, domain.Event{Type: domain.EventTypeResearchComplete, Result: "# Report body"})

	out := buf.String()
	for _, want := range []string{
		`Researching "AI trends"`,
		"instagram  running Extracting from 2 sources...",
		"# Report body",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "heartbeat") {
		t.Fatalf("heartbeat should not be printed:\n%s", out)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "research", "watch"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q not registered: %v", name, err)
		}
	}
}
