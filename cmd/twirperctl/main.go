// Command twirperctl is the Twirper admin tool: migrations, moderation and
// quick reports straight from the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/twirper/twirper/internal/config"
	"github.com/twirper/twirper/internal/logger"
	"github.com/twirper/twirper/model"
	"github.com/twirper/twirper/view"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// opener opens the store a command works on.
type opener func(ctx context.Context) (*model.Store, error)

func openFromConfig(ctx context.Context) (*model.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return model.Open(ctx, cfg.DBDriver, cfg.DSN)
}

func newRootCmd(open opener) *cobra.Command {
	if open == nil {
		open = openFromConfig
	}
	root := &cobra.Command{
		Use:           "twirperctl",
		Short:         "Administer a Twirper database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// withStore opens the store around a command body.
	withStore := func(fn func(ctx context.Context, s *model.Store, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			return fn(ctx, s, cmd.OutOrStdout(), args)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, _ []string) error {
			if err := s.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "Database is up to date")
			return nil
		}),
	})

	root.AddCommand(newUsersCmd(withStore), newPostsCmd(withStore), newHashtagsCmd(withStore))

	root.AddCommand(&cobra.Command{
		Use:   "notifications <username>",
		Short: "Dump the notifications of a user",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, args []string) error {
			u, err := s.GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			ns, err := s.Notifications(ctx, u.ID)
			if err != nil {
				return err
			}
			for _, n := range ns {
				postID := int64(0)
				if n.Post != nil {
					postID = n.Post.ID
				}
				fmt.Fprintf(out, "%s,%s,%d,%s,%t\n", n.Kind, n.Actor.Username, postID, view.DateTimeFormat(n.Date), n.Unread())
			}
			return nil
		}),
	})

	return root
}

type storeRunner func(fn func(ctx context.Context, s *model.Store, out io.Writer, args []string) error) func(*cobra.Command, []string) error

func newUsersCmd(withStore storeRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Inspect users"}

	printUsers := func(out io.Writer, users []model.User) {
		for _, u := range users {
			fmt.Fprintf(out, "%d,%s,%s,%s\n", u.ID, u.Username, u.Name, u.Email)
		}
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Dump all users to STDOUT",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, _ []string) error {
			users, err := s.ListUsers(ctx)
			if err != nil {
				return err
			}
			printUsers(out, users)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "search <text>",
		Short: "Find users by username or name",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, args []string) error {
			users, err := s.SearchUsers(ctx, args[0])
			if err != nil {
				return err
			}
			printUsers(out, users)
			return nil
		}),
	})
	return cmd
}

func newPostsCmd(withStore storeRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "posts", Short: "Inspect and moderate posts"}

	printPosts := func(out io.Writer, posts []model.Post) {
		for _, p := range posts {
			author := ""
			if p.Author != nil {
				author = p.Author.Username
			}
			fmt.Fprintf(out, "%d,%s,%s,%s\n", p.ID, author, p.Text, view.DateTimeFormat(p.PublishedAt))
		}
	}

	var order string
	list := &cobra.Command{
		Use:   "list",
		Short: "Dump all posts and authors to STDOUT",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, _ []string) error {
			o, err := model.ParseOrder(order)
			if err != nil {
				return err
			}
			posts, err := s.ListPosts(ctx, o)
			if err != nil {
				return err
			}
			printPosts(out, posts)
			return nil
		}),
	}
	list.Flags().StringVar(&order, "order", "", "sort by publish date: asc or desc")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "search <text>",
		Short: "Find posts containing text",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, args []string) error {
			posts, err := s.SearchPosts(ctx, args[0])
			if err != nil {
				return err
			}
			printPosts(out, posts)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <post_id>...",
		Short: "Delete posts by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, args []string) error {
			var failed error
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					failed = errors.Join(failed, fmt.Errorf("invalid post id %q", arg))
					continue
				}
				if err := s.DeletePost(ctx, id); err != nil {
					failed = errors.Join(failed, err)
					continue
				}
				fmt.Fprintf(out, "Deleted post: %d\n", id)
			}
			return failed
		}),
	})
	return cmd
}

func newHashtagsCmd(withStore storeRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "hashtags", Short: "Hashtag reports"}

	var n int
	popular := &cobra.Command{
		Use:   "popular",
		Short: "List the most used hashtags",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, _ []string) error {
			tags, err := s.PopularHashtags(ctx, n)
			if err != nil {
				return err
			}
			for _, tag := range tags {
				fmt.Fprintln(out, tag)
			}
			return nil
		}),
	}
	popular.Flags().IntVarP(&n, "limit", "n", 10, "number of hashtags")

	var related int
	relatedCmd := &cobra.Command{
		Use:   "related <hashtag>",
		Short: "List hashtags used together with a hashtag",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *model.Store, out io.Writer, args []string) error {
			tags, err := s.RelatedHashtags(ctx, args[0], related)
			if err != nil {
				return err
			}
			for _, tag := range tags {
				fmt.Fprintln(out, tag)
			}
			return nil
		}),
	}
	relatedCmd.Flags().IntVarP(&related, "limit", "n", 10, "number of hashtags")

	cmd.AddCommand(popular, relatedCmd)
	return cmd
}
