package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/courier/internal/datefmt"
	"github.com/oriys/courier/internal/urlutil"
)

func toolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "URL and date helpers used by the front end",
	}
	cmd.AddCommand(setArgCmd(), queryCmd(), fileURLCmd(), dateCmd(), sinceCmd())
	return cmd
}

func setArgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-arg <url> <name> <value>",
		Short: "Replace or append a query argument",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(urlutil.ChangeArg(args[0], args[1], args[2]))
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <url>",
		Short: "Print the query arguments of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(urlutil.QueryMap(args[0]))
		},
	}
}

func fileURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-url <path>",
		Short: "Resolve a file path against the environment's image host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := ""
			if e, ok := cfg.ActiveEnvironment(); ok {
				base = e.ImgURL
			}
			fmt.Printf("%s\t%s\n", urlutil.ResolveFileURL(base, args[0]), urlutil.FileType(args[0]))
			return nil
		},
	}
}

func dateCmd() *cobra.Command {
	var (
		parts   string
		pattern string
	)

	cmd := &cobra.Command{
		Use:   "date <unix-seconds>",
		Short: "Format a unix timestamp in the client timezone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", args[0], err)
			}
			loc, err := cfg.Client.Location()
			if err != nil {
				return err
			}
			if pattern != "" {
				fmt.Println(datefmt.Format(pattern, time.Unix(sec, 0).In(loc)))
				return nil
			}
			sel := make([]datefmt.Part, 0, len(parts))
			for i := 0; i < len(parts); i++ {
				sel = append(sel, datefmt.Part(parts[i]))
			}
			fmt.Println(datefmt.FormatUnix(sec, loc, sel...))
			return nil
		},
	}

	cmd.Flags().StringVar(&parts, "parts", "YMDhms", "Parts to print, any of Y M D h m s")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Pattern such as YYYY/MM/DD HH:mm (overrides --parts)")

	return cmd
}

func sinceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "since <start> [end]",
		Short: "Print the span between two RFC 3339 times (end defaults to now)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("invalid start: %w", err)
			}
			end := time.Now()
			if len(args) == 2 {
				if end, err = time.Parse(time.RFC3339, args[1]); err != nil {
					return fmt.Errorf("invalid end: %w", err)
				}
			}
			fmt.Println(datefmt.Diff(start, end))
			return nil
		},
	}
}
