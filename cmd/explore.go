// File: cmd/explore.go
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/driver"
	"github.com/xkilldash9x/intentcheck/internal/evidence"
	"github.com/xkilldash9x/intentcheck/internal/fuzz"
	"github.com/xkilldash9x/intentcheck/internal/manifest"
	"github.com/xkilldash9x/intentcheck/internal/observability"
	"github.com/xkilldash9x/intentcheck/internal/reporting"
	"github.com/xkilldash9x/intentcheck/internal/runner"
)

func newExploreCmd() *cobra.Command {
	var baseURL string
	var goal string
	var adminUser, adminPass, loginURL string

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Fuzz a site with seeded random interactions and report what broke",
		Long: "explore drives seeded pseudo-random clicks and form fills against the site\n" +
			"and flags every page that raises a JavaScript error. With --goal it instead\n" +
			"captures the starting page state into a session handoff file for guided\n" +
			"exploration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if baseURL == "" {
				return fmt.Errorf("--base-url is required")
			}

			cfg := *appCfg
			cfg.Fuzz.Seed = viper.GetInt64("fuzz.seed")
			cfg.Fuzz.Duration = viper.GetDuration("fuzz.duration")
			cfg.Fuzz.Safety = viper.GetString("fuzz.safety")
			cfg.Fuzz.ScreenshotEvery = viper.GetInt("fuzz.screenshot_every")
			cfg.Fuzz.CheckpointEvery = viper.GetInt("fuzz.checkpoint_every")
			if err := cfg.Validate(); err != nil {
				return err
			}

			runDir, err := newRunDir(&cfg, "explore")
			if err != nil {
				return err
			}

			var issues int
			err = withAllocator(ctx, &cfg, logger, func(alloc *driver.Allocator) error {
				sess, serr := alloc.NewSession(ctx)
				if serr != nil {
					return fmt.Errorf("open browser session: %w", serr)
				}
				defer func() {
					if cerr := sess.Close(ctx); cerr != nil {
						logger.Warn("Failed to close browser session.", zap.Error(cerr))
					}
				}()

				collector := evidence.NewCollector(sess, cfg.Evidence, cfg.Timeouts, runDir, logger)

				if adminUser != "" {
					login, lerr := manifest.LoginInstructions(manifest.Environment{
						AdminUser: adminUser,
						AdminPass: adminPass,
						LoginURL:  loginURL,
					})
					if lerr != nil {
						return lerr
					}
					r := runner.New(sess, collector, &cfg, baseURL, logger)
					record := r.Execute(ctx, login, "login")
					if record.Status != schemas.RunCompleted {
						return fmt.Errorf("admin login failed: %s", record.FailureReason)
					}
				}

				if oerr := sess.Open(ctx, baseURL); oerr != nil {
					return fmt.Errorf("open %s: %w", baseURL, oerr)
				}
				if werr := sess.WaitLoad(ctx, schemas.LoadNetworkIdle, cfg.Timeouts.PageLoad); werr != nil {
					logger.Warn("Initial page never went network idle, continuing.", zap.Error(werr))
				}

				controller := fuzz.New(sess, collector, cfg.Fuzz, logger)

				if goal != "" {
					record := &schemas.RunRecord{
						Session:   "guided",
						StartedAt: time.Now().UTC(),
						Status:    schemas.RunRunning,
					}
					if gerr := controller.PrepareGuided(ctx, record, baseURL, goal); gerr != nil {
						return gerr
					}
					record.Status = schemas.RunCompleted
					record.CompletedAt = time.Now().UTC()
					if werr := reporting.WriteJSON(filepath.Join(runDir, "run.json"), record); werr != nil {
						return werr
					}
					fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(runDir, "exploration_session.json"))
					return nil
				}

				record, report := controller.Run(ctx)
				issues = len(report.Issues)
				if werr := controller.WriteReport(report, baseURL); werr != nil {
					return werr
				}
				if werr := reporting.WriteJSON(filepath.Join(runDir, "run.json"), record); werr != nil {
					return werr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d actions, %d issues\n%s\n",
					report.Actions, issues, filepath.Join(runDir, "exploration_report.md"))
				return nil
			})
			if err != nil {
				return err
			}

			if issues > 0 {
				return exitWithCode(exitFail, fmt.Sprintf("%d pages raised JavaScript errors", issues))
			}
			return nil
		},
	}

	exploreCmd.Flags().StringVar(&baseURL, "base-url", "", "site under test, e.g. https://example.local")
	exploreCmd.Flags().StringVar(&goal, "goal", "", "capture a guided session handoff instead of fuzzing")
	exploreCmd.Flags().StringVar(&adminUser, "admin-user", "", "log in as this user before exploring")
	exploreCmd.Flags().StringVar(&adminPass, "admin-pass", "", "password for --admin-user")
	exploreCmd.Flags().StringVar(&loginURL, "login-url", "", "login form path (default /user/login)")
	exploreCmd.Flags().Int64("seed", 1337, "seed for the action sequence; same seed, same sequence")
	exploreCmd.Flags().Duration("duration", 10*time.Minute, "how long to fuzz")
	exploreCmd.Flags().String("safety", "read-only", "read-only blocks mutating controls, dangerous blocks nothing")
	exploreCmd.Flags().Int("screenshot-every", 10, "screenshot every N actions, 0 disables")
	exploreCmd.Flags().Int("checkpoint-every", 0, "snapshot checkpoint every N actions, 0 disables")

	viper.BindPFlag("fuzz.seed", exploreCmd.Flags().Lookup("seed"))
	viper.BindPFlag("fuzz.duration", exploreCmd.Flags().Lookup("duration"))
	viper.BindPFlag("fuzz.safety", exploreCmd.Flags().Lookup("safety"))
	viper.BindPFlag("fuzz.screenshot_every", exploreCmd.Flags().Lookup("screenshot-every"))
	viper.BindPFlag("fuzz.checkpoint_every", exploreCmd.Flags().Lookup("checkpoint-every"))

	return exploreCmd
}

func init() {
	rootCmd.AddCommand(newExploreCmd())
}
