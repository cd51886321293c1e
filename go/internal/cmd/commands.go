package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mcdev12/queuetimer/go/internal/view"
	"github.com/spf13/cobra"
)

var (
	assignmentTitle    string
	assignmentDuration string
	renewSession       bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the session id, creating one if needed",
	Args:  cobra.NoArgs,
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error {
		var (
			id  string
			err error
		)
		if renewSession {
			id, err = s.Sessions.Renew(ctx)
		} else {
			id, err = s.Session(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	}),
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an assignment",
	Args:  cobra.NoArgs,
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error {
		a, err := s.NewApp().Create(ctx, assignmentTitle, assignmentDuration)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created assignment %d\n", a.ID)
		return nil
	}),
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show an assignment",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := s.NewApp().Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), view.Render(view.FromAssignment(*a)))
		return nil
	}),
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change an assignment's title and duration",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := s.NewApp().Update(ctx, id, assignmentTitle, assignmentDuration)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), view.Render(view.FromAssignment(*a)))
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an assignment",
	Args:  cobra.ExactArgs(1),
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := s.NewApp().Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted assignment %d\n", id)
		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignments created from this machine",
	Args:  cobra.NoArgs,
	RunE: withServices(func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error {
		_, err := s.NewApp().List(ctx)
		return err
	}),
}

func init() {
	sessionCmd.Flags().BoolVar(&renewSession, "renew", false, "discard the stored session and create a new one")

	for _, c := range []*cobra.Command{createCmd, updateCmd, runCmd} {
		c.Flags().StringVar(&assignmentTitle, "title", "", "assignment title (at most 50 characters)")
		c.Flags().StringVar(&assignmentDuration, "duration", "", "maximum duration as HH:MM, at most 24:00")
	}
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.MarkFlagRequired("title")
		c.MarkFlagRequired("duration")
	}

	rootCmd.AddCommand(sessionCmd, createCmd, getCmd, updateCmd, deleteCmd, listCmd, runCmd, watchCmd)
}

type servicesFunc func(ctx context.Context, cmd *cobra.Command, args []string, s *Services) error

// withServices sets up the service graph around a command
func withServices(fn servicesFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := setupServices(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd.Context(), cmd, args, s)
	}
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid assignment id %q", arg)
	}
	return id, nil
}
