package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/courier/internal/api"
	"github.com/oriys/courier/internal/apiclient"
	"github.com/oriys/courier/internal/validate"
)

func callCmd() *cobra.Command {
	var (
		method       string
		data         string
		needToken    bool
		loading      bool
		noAuthNotice bool
	)

	cmd := &cobra.Command{
		Use:   "call <url>",
		Short: "Send a request and print the interpreted result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			if data != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("--data must be a JSON object: %w", err)
				}
			}

			r, err := getClient()
			if err != nil {
				return err
			}
			defer r.Close()

			res, err := r.client.Send(cmd.Context(), apiclient.Descriptor{
				Method:             method,
				URL:                args[0],
				Payload:            payload,
				ShowLoading:        loading,
				RequiresToken:      needToken,
				SuppressAuthNotice: noAuthNotice,
				OnFailure: func(env apiclient.Envelope) {
					fmt.Fprintf(os.Stderr, "failure: %s\n", env.Message)
				},
			})
			if err != nil {
				return err
			}

			if res.Outcome == apiclient.OutcomeAuthExpired {
				fmt.Fprintln(os.Stderr, "login expired")
				return printJSON(res.Envelope)
			}
			if len(res.Data) == 0 {
				fmt.Println("null")
				return nil
			}
			return printJSON(res.Data)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request payload as a JSON object")
	cmd.Flags().BoolVar(&needToken, "token", false, "Send the stored session token")
	cmd.Flags().BoolVar(&loading, "loading", false, "Show a loading indicator")
	cmd.Flags().BoolVar(&noAuthNotice, "no-auth-notice", false, "Resolve expired-login responses to their data")

	return cmd
}

func menuCmd() *cobra.Command {
	var (
		role string
		tree bool
	)

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Fetch the menu list, optionally filtered by role",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := getClient()
			if err != nil {
				return err
			}
			defer r.Close()

			menus, err := api.New(r.client).GetMenuList(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if tree {
				menus = api.Tree(menus)
			}
			if role != "" {
				menus = api.FilterMenus(menus, role)
			}
			return printJSON(menus)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Keep only menus visible to this role")
	cmd.Flags().BoolVar(&tree, "tree", false, "Nest a flat list by parent_id before filtering")

	return cmd
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := getClient()
			if err != nil {
				return err
			}
			defer r.Close()

			users, err := api.New(r.client).Users(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return printJSON(users)
		},
	}
}

func registerCmd() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if validate.WeakPassword(password) {
				return errors.New("password must be 8-20 characters with upper, lower and digit, and no spaces")
			}

			r, err := getClient()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := api.New(r.client).Register(cmd.Context(), api.RegisterRequest{
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			if token, ok := r.client.Cookie(cfg.Client.TokenKey); ok {
				if err := r.store.Write(cmd.Context(), cfg.Client.TokenKey, token); err != nil {
					return err
				}
			}
			fmt.Printf("Registered %s (id %d)\n", username, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token and cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := getClient()
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			if err := r.store.Remove(ctx, cfg.Client.TokenKey); err != nil {
				return err
			}
			// Close writes the now empty jar back over the saved cookies.
			r.client.ClearCookies()
			fmt.Println("Logged out")
			return nil
		},
	}
}
