package cmd

import (
	"fmt"
	"os"

	"github.com/bryan-buckman/frontpage/internal/database"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/opml"
	"github.com/bryan-buckman/frontpage/internal/rss"
	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v2"
)

func sourcesCmd() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "Fetch every feed and report its health",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "cached",
				Usage: "Report the statuses recorded by the last check instead of fetching",
			},
		},
		Action: func(ctx *cli.Context) error {
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			var statuses []model.SourceStatus
			if ctx.Bool("cached") {
				statuses, err = rt.store.ListStatuses()
			} else {
				fetcher := rss.NewFetcher(rss.OptionsFromConfig(rt.cfg.Fetch))
				statuses, err = rss.CheckSources(ctx.Context, fetcher, rt.store)
			}
			if err != nil {
				return err
			}

			w := ctx.App.Writer
			healthy := 0
			for _, s := range statuses {
				state, detail := "FAIL", s.Message
				if s.OK {
					healthy++
					state, detail = "OK", fmt.Sprintf("%d items", s.ItemCount)
				}
				fmt.Fprintf(w, "%-4s  %s  %s\n", state, cell(s.Feed.Title, feedColumn), runewidth.Truncate(detail, titleColumn, "…"))
			}
			fmt.Fprintf(w, "\n%d of %d sources healthy\n", healthy, len(statuses))
			return nil
		},
	}
}

func updateURLCmd() *cli.Command {
	return &cli.Command{
		Name:      "update-url",
		Usage:     "Point a feed at a new url",
		ArgsUsage: "<feed-id> <url>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return cli.Exit("usage: frontpage update-url <feed-id> <url>", 1)
			}
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			feed, err := database.ChangeFeedURL(rt.store, ctx.Args().Get(0), ctx.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%s now reads from %s\n", feed.ID, feed.URL)
			return nil
		},
	}
}

func importOPMLCmd() *cli.Command {
	return &cli.Command{
		Name:      "import-opml",
		Usage:     "Subscribe to every feed in an OPML file",
		ArgsUsage: "<file>",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return cli.Exit("usage: frontpage import-opml <file>", 1)
			}
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			f, err := os.Open(ctx.Args().First())
			if err != nil {
				return err
			}
			defer f.Close()

			imported, total, err := opml.Import(rt.store, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Imported %d of %d feeds\n", imported, total)
			return nil
		},
	}
}

func exportOPMLCmd() *cli.Command {
	return &cli.Command{
		Name:  "export-opml",
		Usage: "Write the feed list as OPML to stdout",
		Action: func(ctx *cli.Context) error {
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			feeds, err := rt.store.ListFeeds()
			if err != nil {
				return err
			}
			data, err := opml.Export(rt.cfg.Server.SiteTitle+" Feeds", feeds)
			if err != nil {
				return err
			}
			_, err = ctx.App.Writer.Write(data)
			return err
		},
	}
}
