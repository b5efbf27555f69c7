// Command fxa-demo is a small example CLI exercising the account facade:
// it runs the interactive OAuth flow against a real FxA-style content
// server, lists devices, and sends a tab to one of them.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/mozilla/fxa-client-go/internal/logging"
	"github.com/mozilla/fxa-client-go/pkg/fxa"
)

// demoFlags holds the flags shared by every subcommand, mirroring the
// teacher's split between a flag struct and the library config it builds.
type demoFlags struct {
	contentURL   string
	clientID     string
	callbackPort int
	statePath    string
	timeout      time.Duration
}

func main() {
	flags := &demoFlags{}
	root := &cobra.Command{
		Use:   "fxa-demo",
		Short: "Exercise the FxA account facade end to end",
	}
	root.PersistentFlags().StringVar(&flags.contentURL, "content-url", "https://accounts.firefox.com", "FxA content server base URL")
	root.PersistentFlags().StringVar(&flags.clientID, "client-id", "", "OAuth client id")
	root.PersistentFlags().IntVar(&flags.callbackPort, "callback-port", 8199, "local port to receive the OAuth redirect on")
	root.PersistentFlags().StringVar(&flags.statePath, "state-file", "fxa-demo-state.json", "where to persist account state between runs")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "how long to wait for the browser login to complete")

	root.AddCommand(loginCmd(flags), devicesCmd(flags), sendTabCmd(flags))

	if err := root.Execute(); err != nil {
		logging.Errorf("fxa-demo: %v", err)
		os.Exit(1)
	}
}

func loadAccount(flags *demoFlags) (*fxa.Account, error) {
	if data, err := os.ReadFile(flags.statePath); err == nil {
		account, err := fxa.FromState(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to load state from %s: %w", flags.statePath, err)
		}
		attachPersistCallback(account, flags.statePath)
		return account, nil
	}

	cfg, err := fxa.NewConfig(flags.contentURL, flags.clientID, callbackRedirectURI(flags.callbackPort))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	account := fxa.NewAccount(cfg)
	attachPersistCallback(account, flags.statePath)
	return account, nil
}

func attachPersistCallback(account *fxa.Account, path string) {
	account.SetPersistCallback(func(serialized string) {
		if err := os.WriteFile(path, []byte(serialized), 0o600); err != nil {
			logging.Errorw("failed to persist account state", "path", path, "error", err)
		}
	})
}

func callbackRedirectURI(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", port)
}

func loginCmd(flags *demoFlags) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the interactive OAuth login flow in a browser",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := loadAccount(flags)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			authURL, err := account.BeginOAuthFlow(ctx, scopes, true)
			if err != nil {
				return fmt.Errorf("failed to start oauth flow: %w", err)
			}

			code, state, err := runCallbackServer(ctx, flags.callbackPort)
			if err != nil {
				return fmt.Errorf("failed to receive oauth callback: %w", err)
			}

			logging.Infof("opening browser at %s", authURL)
			if err := browser.OpenURL(authURL); err != nil {
				logging.Warnf("failed to open browser automatically, open this URL manually: %s", authURL)
			}

			var completedCode, completedState string
			select {
			case completedCode = <-code:
				completedState = <-state
			case <-ctx.Done():
				return fmt.Errorf("timed out waiting for oauth callback: %w", ctx.Err())
			}

			if err := account.CompleteOAuthFlow(ctx, completedCode, completedState); err != nil {
				return fmt.Errorf("failed to complete oauth flow: %w", err)
			}

			logging.Info("login complete")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{"profile", "https://identity.mozilla.com/apps/oldsync"}, "OAuth scopes to request")
	return cmd
}

// runCallbackServer starts a one-shot local HTTP server to receive the
// OAuth redirect, returning channels that each yield exactly one value.
func runCallbackServer(ctx context.Context, port int) (<-chan string, <-chan string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, nil, err
	}

	codeCh := make(chan string, 1)
	stateCh := make(chan string, 1)

	mux := http.NewServeMux()
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		codeCh <- r.URL.Query().Get("code")
		stateCh <- r.URL.Query().Get("state")
		fmt.Fprintln(w, "Login complete, you can close this tab.")
		go func() { _ = server.Shutdown(context.Background()) }()
	})

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Errorw("callback server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	return codeCh, stateCh, nil
}

func devicesCmd(flags *demoFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices attached to this account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := loadAccount(flags)
			if err != nil {
				return err
			}
			devices, err := account.GetDevices(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range devices {
				fmt.Printf("%s\t%s\t%s\n", d.ID, d.Name, d.Type)
			}
			return nil
		},
	}
}

func sendTabCmd(flags *demoFlags) *cobra.Command {
	var targetID, title, url string
	cmd := &cobra.Command{
		Use:   "send-tab",
		Short: "Register this device for send-tab and send a tab to another device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := loadAccount(flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := account.EnsureSendTabRegistered(ctx); err != nil {
				return fmt.Errorf("failed to register send-tab: %w", err)
			}

			devices, err := account.GetDevices(ctx)
			if err != nil {
				return err
			}
			for _, d := range devices {
				if d.ID == targetID {
					return account.SendTab(ctx, d, title, url)
				}
			}
			return fmt.Errorf("no device with id %q found", targetID)
		},
	}
	cmd.Flags().StringVar(&targetID, "target", "", "device id to send the tab to")
	cmd.Flags().StringVar(&title, "title", "", "tab title")
	cmd.Flags().StringVar(&url, "url", "", "tab URL")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
