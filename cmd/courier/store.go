package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write the expiring key/value store",
	}
	cmd.AddCommand(storeSetCmd(), storeGetCmd(), storeRmCmd(), storeLsCmd())
	return cmd
}

func storeSetCmd() *cobra.Command {
	var (
		ttlDays float64
		asJSON  bool
		session bool
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a value with a TTL in days",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]

			r, err := getStore()
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			if session {
				return r.store.WriteSession(ctx, key, raw)
			}

			var value any = raw
			if asJSON {
				if err := json.Unmarshal([]byte(raw), &value); err != nil {
					return fmt.Errorf("value is not valid JSON: %w", err)
				}
			}
			if err := r.store.WriteTTL(ctx, key, value, ttlDays); err != nil {
				return err
			}
			fmt.Printf("Stored %s\n", key)
			return nil
		},
	}

	cmd.Flags().Float64Var(&ttlDays, "ttl", 0, "TTL in days (0 uses the configured default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Parse value as JSON")
	cmd.Flags().BoolVar(&session, "session", false, "Write to the in-process session surface (discarded when the command exits)")

	return cmd
}

func storeGetCmd() *cobra.Command {
	var session bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a value; expired entries are removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := getStore()
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			if session {
				v, ok, err := r.store.ReadSession(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s: not set", args[0])
				}
				fmt.Println(v)
				return nil
			}

			v, err := r.store.Read(ctx, args[0])
			if err != nil {
				return err
			}
			if !v.Found() {
				return fmt.Errorf("%s: %s", args[0], v.Kind())
			}
			fmt.Println(v.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&session, "session", false, "Read from the in-process session surface (empty in a fresh command)")

	return cmd
}

func storeRmCmd() *cobra.Command {
	var session bool

	cmd := &cobra.Command{
		Use:   "rm <key>...",
		Short: "Remove keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := getStore()
			if err != nil {
				return err
			}
			defer r.Close()

			remove := r.store.Remove
			if session {
				remove = r.store.RemoveSession
			}
			for _, key := range args {
				if err := remove(cmd.Context(), key); err != nil {
					return err
				}
			}
			fmt.Printf("Removed %d key(s)\n", len(args))
			return nil
		},
	}

	cmd.Flags().BoolVar(&session, "session", false, "Remove from the in-process session surface")

	return cmd
}

func storeLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := getStore()
			if err != nil {
				return err
			}
			defer r.Close()

			keys, err := r.store.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}
