// Package cmd wires the frontpage commands.
package cmd

import (
	"fmt"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/priority"
	"github.com/bryan-buckman/frontpage/internal/story"
	"github.com/urfave/cli/v2"
)

// RootApp returns the frontpage command tree.
func RootApp() *cli.App {
	return &cli.App{
		Name:  "frontpage",
		Usage: "A keyword-ranked front page built from RSS and Atom feeds",
		Description: `Frontpage fetches the configured feeds a few at a time, keeps
		the stories from the most recent day and ranks them by keyword score.

		Flags can be set via environment variables, e.g.:

		--config => FRONTPAGE_CONFIG=frontpage.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or TOML config file; defaults are used when empty",
				EnvVars: []string{"FRONTPAGE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			rankCmd(),
			sourcesCmd(),
			updateURLCmd(),
			importOPMLCmd(),
			exportOPMLCmd(),
		},
		Action: func(ctx *cli.Context) error {
			return cli.ShowAppHelp(ctx)
		},
	}
}

// runtime holds what every command needs.
type runtime struct {
	cfg    *config.Config
	store  database.Store
	ranker *story.Ranker
}

func setup(ctx *cli.Context) (*runtime, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	cfg.Logging.Apply()

	store, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &runtime{
		cfg:    cfg,
		store:  store,
		ranker: story.NewRanker(newScorer(cfg.Keywords)),
	}, nil
}

// newScorer builds a scorer from the keywords section, falling back to
// the built-in lists for anything left empty.
func newScorer(k config.KeywordsConfig) *priority.Scorer {
	primary := k.Primary
	if len(primary) == 0 {
		primary = priority.PrimaryKeywords
	}
	supporting := k.Supporting
	if len(supporting) == 0 {
		supporting = priority.SupportingKeywords
	}
	bonus := priority.DefaultSupportingBonus
	if k.SupportingBonus != nil {
		bonus = *k.SupportingBonus
	}
	return priority.NewScorer(primary, supporting, bonus)
}
