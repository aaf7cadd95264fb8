package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/researcher/internal/client"
	"github.com/xiaot623/gogo/researcher/internal/domain"
)

const defaultServer = "http://localhost:8097"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newResearchCommand() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "research <query>",
		Short: "Start a research session and stream its progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := client.NewClient(server)
			created, err := c.CreateResearch(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold("Session:"), created.SessionID)
			return watch(ctx, c, created.SessionID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", defaultServer, "research service base URL")
	return cmd
}

func newWatchCommand() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "watch <session_id>",
		Short: "Stream the progress of an existing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, client.NewClient(server), args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", defaultServer, "research service base URL")
	return cmd
}

func watch(ctx context.Context, c *client.Client, sessionID string, out io.Writer) error {
	var failed string
	err := c.Watch(ctx, sessionID, func(ev domain.Event) error {
		printEvent(out, ev)
		if ev.Type == domain.EventTypeError {
			failed = ev.Message
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed != "" {
		return fmt.Errorf("research failed: %s", failed)
	}
	return nil
}

func printEvent(out io.Writer, ev domain.Event) {
	switch ev.Type {
	case domain.EventTypeInitialState:
		fmt.Fprintf(out, "%s %s\n", gray("status:"), ev.SessionStatus)
	case domain.EventTypeFlowStarted:
		fmt.Fprintf(out, "%s %q\n", bold("Researching"), ev.Query)
	case domain.EventTypeAgentUpdate:
		fmt.Fprintf(out, "  %-10s %s %s\n", ev.AgentID, statusLabel(ev.Status), gray(ev.Message))
	case domain.EventTypeResearchComplete:
		fmt.Fprintf(out, "\n%s\n\n%s\n", green(bold("Report")), ev.Result)
	case domain.EventTypeError:
		fmt.Fprintf(out, "%s %s\n", red("error:"), ev.Message)
	}
}

func statusLabel(s domain.AgentStatus) string {
	label := fmt.Sprintf("%-7s", s)
	switch s {
	case domain.AgentStatusRunning:
		return yellow(label)
	case domain.AgentStatusDone:
		return green(label)
	case domain.AgentStatusError:
		return red(label)
	}
	return gray(label)
}
