// Package cli implements the rangoonctl administration commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/auditable"
	"github.com/rangoon-shop/rangoon-admin/internal/catalog/brands"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
	"github.com/rangoon-shop/rangoon-admin/internal/session"
	"github.com/rangoon-shop/rangoon-admin/jobs"
)

// SystemActor attributes audit entries written by rangoonctl.
const SystemActor = "system:rangoonctl"

// Backends are the stores a command works against. Nil members are unavailable.
type Backends struct {
	Migrate     func(ctx context.Context) error
	Permissions rbac.Store
	Brands      auditable.Repository[brands.Brand]
	Sink        audit.Sink
	Redis       *redis.Client
	Sessions    *session.Store
	Jobs        *JobsCLI
	Close       func()
}

// Opener connects the backends lazily, once per command.
type Opener func(ctx context.Context) (*Backends, error)

// NewRootCommand assembles rangoonctl.
func NewRootCommand(open Opener, logger *slog.Logger) *cobra.Command {
	if logger == nil {
		logger = slog.Default()
	}
	root := &cobra.Command{
		Use:           "rangoonctl",
		Short:         "Administration tool for the Rangoon admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	run := func(fn func(cmd *cobra.Command, b *Backends) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			b, err := open(cmd.Context())
			if err != nil {
				return err
			}
			if b.Close != nil {
				defer b.Close()
			}
			return fn(cmd, b)
		}
	}

	root.AddCommand(
		migrateCmd(run),
		seedCmd(run, logger),
		grantCmd(run, logger),
		canCmd(run, logger),
		permissionsCmd(run, logger),
		sessionCmd(run),
		jobsCmd(run),
	)
	return root
}

type runner func(fn func(cmd *cobra.Command, b *Backends) error) func(*cobra.Command, []string) error

var errUnavailable = errors.New("backend not configured")

func migrateCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			if b.Migrate == nil {
				return fmt.Errorf("migrate: %w", errUnavailable)
			}
			if err := b.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		}),
	}
}

func seedCmd(run runner, logger *slog.Logger) *cobra.Command {
	var brand string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the built-in role permissions and a starter brand",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			ctx := cmd.Context()
			if b.Permissions == nil {
				return fmt.Errorf("seed: %w", errUnavailable)
			}
			added := 0
			for _, p := range rbac.Presets() {
				ok, err := b.Permissions.AddPermission(ctx, p)
				if err != nil {
					return fmt.Errorf("seed permissions: %w", err)
				}
				if ok {
					added++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "permissions: %d added\n", added)

			if brand == "" || b.Brands == nil {
				return nil
			}
			created, err := seedBrand(ctx, b, brand, logger)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "brand %q created\n", brand)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "brand %q already present\n", brand)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&brand, "brand", "Samsung", "Starter brand name (empty to skip)")
	return cmd
}

// seedBrand creates name through the audited service so the seed shows up in the trail.
func seedBrand(ctx context.Context, b *Backends, name string, logger *slog.Logger) (bool, error) {
	svc := brands.NewService(b.Brands, b.Sink, logger)
	ctx, _ = audit.WithTrail(ctx)

	existing, err := svc.TryFindUnique(ctx, auditable.Lookup{Field: "name", Value: name}).Unwrap()
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	if _, err := svc.TryCreate(ctx, auditable.Values{"name": auditable.NormalizeKey(name)}).Unwrap(); err != nil {
		return false, err
	}
	if b.Sink != nil {
		if _, err := svc.Audit(ctx, SystemActor).Unwrap(); err != nil {
			return true, err
		}
	}
	return true, nil
}

type grantFlags struct {
	role, action, resource string
}

func (f *grantFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.role, "role", "r", "", "Role name (required)")
	cmd.Flags().StringVarP(&f.action, "action", "a", "", "Action: Create, Read, Update or Delete (required)")
	cmd.Flags().StringVarP(&f.resource, "resource", "x", "", "Resource name (required)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("resource")
}

func (f grantFlags) parse() (rbac.Role, rbac.Action, rbac.Resource, error) {
	action, ok := rbac.ParseAction(f.action)
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", rbac.ErrUnknownAction, f.action)
	}
	resource, ok := rbac.ParseResource(f.resource)
	if !ok {
		return "", "", "", fmt.Errorf("%w: %s", rbac.ErrUnknownResource, f.resource)
	}
	return rbac.Role(f.role), action, resource, nil
}

func engineFor(b *Backends, logger *slog.Logger) (*rbac.Engine, error) {
	if b.Permissions == nil {
		return nil, fmt.Errorf("rbac: %w", errUnavailable)
	}
	return rbac.NewEngine(rbac.EngineConfig{Store: b.Permissions, Redis: b.Redis, Logger: logger})
}

func grantCmd(run runner, logger *slog.Logger) *cobra.Command {
	var f grantFlags
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a role permission to act on a resource",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			role, action, resource, err := f.parse()
			if err != nil {
				return err
			}
			engine, err := engineFor(b, logger)
			if err != nil {
				return err
			}
			if err := engine.Grant(cmd.Context(), role, action, resource); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s %s on %s\n", role, action, resource)
			return nil
		}),
	}
	f.bind(cmd)
	return cmd
}

func canCmd(run runner, logger *slog.Logger) *cobra.Command {
	var f grantFlags
	cmd := &cobra.Command{
		Use:   "can",
		Short: "Check whether a role may act on a resource",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			role, action, resource, err := f.parse()
			if err != nil {
				return err
			}
			engine, err := engineFor(b, logger)
			if err != nil {
				return err
			}
			allowed, err := engine.Authorize(cmd.Context(), role, action, resource)
			if err != nil {
				return err
			}
			verdict := "denied"
			if allowed {
				verdict = "allowed"
			}
			fmt.Fprintln(cmd.OutOrStdout(), verdict)
			return nil
		}),
	}
	f.bind(cmd)
	return cmd
}

func permissionsCmd(run runner, logger *slog.Logger) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the effective permissions of a role",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			engine, err := engineFor(b, logger)
			if err != nil {
				return err
			}
			r := rbac.Role(role)
			if err := engine.Resolve(cmd.Context(), r); err != nil {
				return err
			}
			return printGrants(cmd.OutOrStdout(), engine.EffectivePermissions(r))
		}),
	}
	cmd.Flags().StringVarP(&role, "role", "r", "", "Role name (required)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func printGrants(out io.Writer, grants []rbac.Grant) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tACTION")
	for _, g := range grants {
		fmt.Fprintf(w, "%s\t%s\n", g.Resource, g.Action)
	}
	return w.Flush()
}

func sessionCmd(run runner) *cobra.Command {
	var (
		user      string
		role      string
		superuser bool
	)
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Issue an access token for a principal",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			if b.Sessions == nil {
				return fmt.Errorf("session: %w", errUnavailable)
			}
			token, err := b.Sessions.Issue(cmd.Context(), rbac.Principal{UserID: user, Role: rbac.Role(role), SuperUser: superuser})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User id (required)")
	cmd.Flags().StringVarP(&role, "role", "r", string(rbac.RoleGuest), "Role name")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant every permission")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func jobsCmd(run runner) *cobra.Command {
	var retry bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect audit re-delivery queues",
		RunE: run(func(cmd *cobra.Command, b *Backends) error {
			if b.Jobs == nil {
				return fmt.Errorf("jobs: %w", errUnavailable)
			}
			if retry {
				n, err := b.Jobs.RetryAll()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d tasks moved to pending\n", n)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY")
			for _, q := range []string{jobs.QueueAudit, jobs.QueueDefault} {
				stats, err := b.Jobs.InspectQueue(q)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().BoolVar(&retry, "retry", false, "Retry every failed audit re-delivery now")
	return cmd
}
