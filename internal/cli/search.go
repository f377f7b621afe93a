package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/snippethub/internal/client"
	"github.com/sakif/snippethub/internal/config"
	"github.com/sakif/snippethub/internal/ranking"
	"github.com/sakif/snippethub/internal/search"
	"github.com/sakif/snippethub/internal/service"
)

func (a *app) searchCommand() *cobra.Command {
	var (
		lang string
		tags []string
		sort string
		page int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search snippets on a running server",
		Example: `  snippethub search "binary search" --tags algorithms --sort votes
  snippethub search --lang go --page 2 --server https://snippets.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state := search.State{
				Lang: lang,
				Tags: tags,
				Sort: ranking.ParseSort(sort),
				Page: page,
			}
			if len(args) == 1 {
				state.Q = args[0]
			}

			c := client.New(a.cfg.BaseURL)
			res, err := c.Search(cmd.Context(), state.Normalize())
			if err != nil {
				return err
			}
			printResults(a.stdout, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "language filter")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags; all must match")
	cmd.Flags().StringVar(&sort, "sort", "newest", "newest or votes")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().String("server", "", "server base URL (default http://localhost:8080)")
	bindFlag(a.v, config.KeyBaseURL, cmd.Flags().Lookup("server"))

	return cmd
}

func printResults(w io.Writer, res *service.SearchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tTITLE\tLANGUAGE\tTAGS\tAUTHOR\tSLUG")
	for _, s := range res.Snippets {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.Votes.Score, s.Title, s.Language, strings.Join(s.Tags, ","), s.Author.Name, s.Slug)
	}
	tw.Flush()

	more := ""
	if res.HasMore {
		more = ", more available"
	}
	fmt.Fprintf(w, "\npage %d, %d of %d results%s\n", res.Page, len(res.Snippets), res.Total, more)
}
