package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pqrs_dashboard/backend/internal/client"
)

var assignFlags struct {
	baseURL  string
	token    string
	email    string
	password string
	entity   string
	employee string
	clear    bool
}

var assignCmd = &cobra.Command{
	Use:   "assign <pqr-id>",
	Short: "Assign or unassign a request through the HTTP API",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssign,
}

func init() {
	f := assignCmd.Flags()
	f.StringVar(&assignFlags.baseURL, "api", "http://localhost:8080", "API base URL")
	f.StringVar(&assignFlags.token, "token", os.Getenv("PQRS_TOKEN"), "session token")
	f.StringVar(&assignFlags.email, "email", "", "log in with this email when no token is given")
	f.StringVar(&assignFlags.password, "password", "", "password for --email")
	f.StringVar(&assignFlags.entity, "entity", "", "entity in effect for the call")
	f.StringVar(&assignFlags.employee, "employee", "", "employee id to assign")
	f.BoolVar(&assignFlags.clear, "clear", false, "remove the current assignee")
}

func runAssign(cmd *cobra.Command, args []string) error {
	if (assignFlags.employee == "") == !assignFlags.clear {
		return errors.New("assign: pass exactly one of --employee or --clear")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(assignFlags.baseURL, assignFlags.token)
	if c.Token == "" {
		if _, err := c.Login(ctx, assignFlags.email, assignFlags.password); err != nil {
			return err
		}
	}

	var assignee *string
	if !assignFlags.clear {
		assignee = &assignFlags.employee
	}
	p, err := c.Assign(ctx, assignFlags.entity, args[0], assignee)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
