package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/krma/internal/auth"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

// commandTimeout bounds one-shot operator commands.
const commandTimeout = 2 * time.Minute

// withApp runs fn with a freshly built app and a bounded context.
func withApp(envFile string, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(envFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDateFlag(s string) (model.Date, error) {
	if s == "" {
		return model.DateOf(time.Now()), nil
	}
	return model.ParseDate(s)
}

func consumeCmd(envFile *string) *cobra.Command {
	var (
		farmID   int64
		date     string
		auto     bool
		lookback int
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Execute daily consumption for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			return withApp(*envFile, func(ctx context.Context, a *app) error {
				if auto {
					res, err := a.svc.ExecuteAuto(ctx, farmID, d, lookback)
					if err != nil {
						return err
					}
					return printJSON(res)
				}

				res, err := a.svc.Execute(ctx, farmID, d)
				if errors.Is(err, model.ErrAlreadyExecuted) {
					fmt.Fprintf(os.Stderr, "%s is already executed\n", d)
					return err
				}
				if err != nil {
					return err
				}
				if err := printJSON(res); err != nil {
					return err
				}
				if res.Status == model.ExecutionSkipped {
					return fmt.Errorf("not executed: insufficient stock for %d feed type(s)", len(res.Shortages))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&farmID, "farm", 0, "farm id")
	cmd.Flags().StringVar(&date, "date", "", "date to execute, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&auto, "auto", false, "execute every pending date up to --date")
	cmd.Flags().IntVar(&lookback, "lookback", 0, "days auto mode looks back (default from config)")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}

func undoCmd(envFile *string) *cobra.Command {
	var (
		farmID int64
		date   string
	)

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the executed consumption of a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.ParseDate(date)
			if err != nil {
				return err
			}
			return withApp(*envFile, func(ctx context.Context, a *app) error {
				res, err := a.svc.Undo(ctx, farmID, d)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().Int64Var(&farmID, "farm", 0, "farm id")
	cmd.Flags().StringVar(&date, "date", "", "date to undo, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("farm")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func reorderCmd(envFile *string) *cobra.Command {
	var (
		farmID int64
		asOf   string
	)

	cmd := &cobra.Command{
		Use:   "reorder",
		Short: "Print reorder suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(asOf)
			if err != nil {
				return err
			}
			return withApp(*envFile, func(ctx context.Context, a *app) error {
				report, err := a.svc.ReorderReport(ctx, farmID, d)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	cmd.Flags().Int64Var(&farmID, "farm", 0, "farm id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}

func tokenCmd(envFile *string) *cobra.Command {
	var (
		farmID int64
		userID int64
		user   string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*envFile, func(ctx context.Context, a *app) error {
				if _, err := store.GetFarm(ctx, a.db, farmID); err != nil {
					return err
				}
				secret, err := a.jwtSecret(ctx)
				if err != nil {
					return err
				}
				token, err := auth.GenerateToken(secret, auth.Identity{
					UserID:   userID,
					Username: user,
					Role:     role,
					FarmID:   farmID,
				})
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&farmID, "farm", 0, "farm id")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id carried in the token")
	cmd.Flags().StringVar(&user, "user", "", "user name carried in the token")
	cmd.Flags().StringVar(&role, "role", model.RoleWorker, "role: admin, manager or worker")
	_ = cmd.MarkFlagRequired("farm")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func farmCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "farm",
		Short: "Manage farms",
	}

	var name, species string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a farm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*envFile, func(ctx context.Context, a *app) error {
				farm, err := store.CreateFarm(ctx, a.db, name, species)
				if err != nil {
					return err
				}
				return printJSON(farm)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "farm name")
	add.Flags().StringVar(&species, "species", model.SpeciesGoat, "goat, sheep or camel")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List farms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*envFile, func(ctx context.Context, a *app) error {
				farms, err := store.ListFarms(ctx, a.db)
				if err != nil {
					return err
				}
				return printJSON(farms)
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
