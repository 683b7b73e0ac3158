package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"

	"github.com/solarpro/erp/pkg/editor"
	"github.com/solarpro/erp/pkg/settings"
)

// EnvPassword supplies the sign-in password when --password is omitted
const EnvPassword = "SOLARPRO_PASSWORD"

// listColumns are the table columns shown per kind
var listColumns = map[settings.Kind][]string{
	settings.KindRole:       {"id", "name", "description"},
	settings.KindPermission: {"id", "role_name", "module", "action"},
	settings.KindWorkflow:   {"id", "name", "config"},
	settings.KindForm:       {"id", "name", "config"},
	settings.KindLanguage:   {"id", "code", "name"},
}

func newSignInCommand(env Env) *Command {
	var (
		conn     Connection
		email    string
		password string
	)
	cmd := &Command{
		Name:        "signin",
		Description: "Sign in and print a session token",
		Usage:       "solarpro-admin signin --email <email> [--password <password>]",
		Flags:       pflag.NewFlagSet("signin", pflag.ContinueOnError),
	}
	conn.AddFlags(cmd.Flags, env)
	cmd.Flags.StringVar(&email, "email", "", "account email")
	cmd.Flags.StringVar(&password, "password", "", "account password ($"+EnvPassword+")")

	cmd.Run = func(ctx context.Context, args []string) error {
		if password == "" {
			password = env.Getenv(EnvPassword)
		}
		if email == "" || password == "" {
			return errors.New("--email and --password are required")
		}
		c, err := conn.Client()
		if err != nil {
			return err
		}
		if _, err := c.SignIn(ctx, email, password); err != nil {
			return err
		}
		fmt.Fprintln(env.Out, c.Token())
		return nil
	}
	return cmd
}

func newNavCommand(env Env) *Command {
	var conn Connection
	cmd := &Command{
		Name:        "nav",
		Description: "Show the menu entries visible to the session",
		Usage:       "solarpro-admin nav",
		Flags:       pflag.NewFlagSet("nav", pflag.ContinueOnError),
	}
	conn.AddFlags(cmd.Flags, env)

	cmd.Run = func(ctx context.Context, args []string) error {
		c, err := conn.Client()
		if err != nil {
			return err
		}
		items, err := c.Navigation(ctx)
		if err != nil {
			return err
		}
		rows := [][]string{{"NAME", "HREF"}}
		for _, item := range items {
			rows = append(rows, []string{item.Name, item.Href})
		}
		return renderTable(env.Out, rows)
	}
	return cmd
}

func newListCommand(env Env) *Command {
	var conn Connection
	cmd := &Command{
		Name:        "list",
		Description: "List settings of one kind",
		Usage:       "solarpro-admin list <role|permission|workflow|form|language>",
		Flags:       pflag.NewFlagSet("list", pflag.ContinueOnError),
	}
	conn.AddFlags(cmd.Flags, env)

	cmd.Run = func(ctx context.Context, args []string) error {
		kind, err := kindArg(args)
		if err != nil {
			return err
		}
		c, err := conn.Client()
		if err != nil {
			return err
		}
		ed, err := editor.New(kind, c)
		if err != nil {
			return err
		}
		if err := ed.Load(ctx); err != nil {
			return ed.Err()
		}

		columns := listColumns[kind]
		header := make([]string, len(columns))
		for i, col := range columns {
			header[i] = strings.ToUpper(col)
		}
		rows := [][]string{header}
		for _, item := range ed.Items() {
			row := make([]string, len(columns))
			for i, col := range columns {
				row[i] = cell(item[col])
			}
			rows = append(rows, row)
		}
		return renderTable(env.Out, rows)
	}
	return cmd
}

func newCreateCommand(env Env) *Command {
	var (
		conn   Connection
		sets   []string
		config string
	)
	cmd := &Command{
		Name:        "create",
		Description: "Create a setting through its editor",
		Usage:       "solarpro-admin create <kind> --set field=value [--set ...] [--config JSON]",
		Flags:       pflag.NewFlagSet("create", pflag.ContinueOnError),
	}
	conn.AddFlags(cmd.Flags, env)
	cmd.Flags.StringArrayVar(&sets, "set", nil, "form field as field=value (repeatable)")
	cmd.Flags.StringVar(&config, "config", "", "config JSON object for workflow and form")

	cmd.Run = func(ctx context.Context, args []string) error {
		kind, err := kindArg(args)
		if err != nil {
			return err
		}
		c, err := conn.Client()
		if err != nil {
			return err
		}
		ed, err := editor.New(kind, c)
		if err != nil {
			return err
		}
		if err := ed.Load(ctx); err != nil {
			return ed.Err()
		}

		for _, kv := range sets {
			field, value, ok := strings.Cut(kv, "=")
			if !ok || field == "" {
				return fmt.Errorf("invalid --set %q, want field=value", kv)
			}
			ed.Set(field, value)
		}
		if config != "" {
			ed.Set("config", config)
		}

		created, err := ed.Submit(ctx)
		if err != nil {
			return ed.Err()
		}

		keys := make([]string, 0, len(created))
		for k := range created {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rows := [][]string{{"FIELD", "VALUE"}}
		for _, k := range keys {
			rows = append(rows, []string{k, cell(created[k])})
		}
		return renderTable(env.Out, rows)
	}
	return cmd
}

func kindArg(args []string) (settings.Kind, error) {
	if len(args) != 1 {
		return "", errors.New("expected exactly one kind: role, permission, workflow, form or language")
	}
	return settings.ParseKind(args[0])
}

// renderTable writes rows with the first row as the header
func renderTable(out io.Writer, rows [][]string) error {
	table := tablewriter.NewWriter(out)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
