package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/bryan-buckman/frontpage/internal/config"
	"github.com/bryan-buckman/frontpage/internal/model"
	"github.com/bryan-buckman/frontpage/internal/priority"
	"github.com/bryan-buckman/frontpage/internal/rss"
	"github.com/bryan-buckman/frontpage/internal/story"
	"github.com/mattn/go-runewidth"
	"github.com/urfave/cli/v2"
)

const (
	feedColumn  = 18
	titleColumn = 64
)

func rankCmd() *cli.Command {
	return &cli.Command{
		Name:  "rank",
		Usage: "Print the ranked front page grouped by day",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Keep loading batches until every feed has been read",
			},
		},
		Action: func(ctx *cli.Context) error {
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			fetcher := rss.NewFetcher(rss.BatchOptionsFromConfig(rt.cfg.Fetch))
			loader := story.NewLoader(rt.store, fetcher, rt.ranker)
			acc := story.NewAccumulator(rt.ranker)

			feeds, err := rt.store.ListFeeds()
			if err != nil {
				return err
			}
			state, err := loadPages(ctx, loader, acc, feeds, rt.cfg.Stories, ctx.Bool("all"))
			if err != nil {
				return err
			}
			printFrontPage(ctx.App.Writer, state, rt.ranker.Scorer())
			return nil
		},
	}
}

// loadPages reads the first batch and, when all is set, every following
// batch into one accumulated state. The feed list is read once so cursors
// stay stable across pages.
func loadPages(ctx *cli.Context, loader *story.Loader, acc *story.Accumulator, feeds []model.FeedConfig, sizes config.StoriesConfig, all bool) (story.FeedState, error) {
	first, err := loader.LoadBatch(ctx.Context, story.BatchRequest{
		FeedBatchSize: sizes.InitialFeedBatchSize,
		StoryLimit:    sizes.InitialStoryLimit,
		Feeds:         feeds,
	})
	if err != nil {
		return story.FeedState{}, err
	}
	state := acc.Start(first)

	for all && state.HasMore {
		batch, err := loader.LoadBatch(ctx.Context, story.BatchRequest{
			Cursor:        state.Cursor,
			FeedBatchSize: sizes.FeedBatchSize,
			StoryLimit:    sizes.StoryLimit,
			Feeds:         feeds,
		})
		if err != nil {
			return state, err
		}
		state = acc.Merge(state, batch)
	}
	return state, nil
}

func printFrontPage(w io.Writer, state story.FeedState, scorer *priority.Scorer) {
	if len(state.Stories) == 0 {
		fmt.Fprintln(w, "No stories.")
	}
	for _, group := range story.GroupByDate(state.Stories) {
		heading := "Undated"
		if !group.Undated {
			heading = group.Date.Format("Monday, January 2, 2006")
		}
		fmt.Fprintf(w, "\n%s\n%s\n", heading, strings.Repeat("-", runewidth.StringWidth(heading)))
		for _, s := range group.Stories {
			fmt.Fprintln(w, storyRow(s, scorer))
		}
	}

	if len(state.Errors) > 0 {
		fmt.Fprintf(w, "\n%d feed(s) failed:\n", len(state.Errors))
		for _, e := range state.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Config.ID, e.Message)
		}
	}
	if state.HasMore {
		fmt.Fprintln(w, "\nMore feeds available; rerun with --all.")
	}
}

func storyRow(s model.StoryCardData, scorer *priority.Scorer) string {
	score := scorer.StoryScore(s.Title, s.Summary, s.FeedTitle)
	return fmt.Sprintf("%4d  %s  %s",
		score,
		cell(s.FeedTitle, feedColumn),
		runewidth.Truncate(s.Title, titleColumn, "…"))
}

// cell truncates or pads s to exactly width terminal columns.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
