package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"capsule-go/internal/app"
	"capsule-go/internal/capsule"
	"capsule-go/internal/config"
	"capsule-go/internal/httpapi"
	"capsule-go/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a CapsuleApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Create", "Serve").
func newApp(ctx context.Context, operation string) (*app.CapsuleApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewCapsuleApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// attachmentContentType derives a MIME type from the file extension.
// Unknown extensions yield ""; downloads then fall back to
// application/octet-stream.
func attachmentContentType(path string) string {
	return mime.TypeByExtension(filepath.Ext(path))
}

// identity returns the caller's user id and email from the root flags.
// Local commands act on behalf of this identity, the same way API
// requests act on behalf of their bearer token.
func identity(cmd *cobra.Command) (string, string, error) {
	userID, _ := cmd.Flags().GetString("user")
	email, _ := cmd.Flags().GetString("email")
	if userID == "" {
		return "", "", fmt.Errorf("--user is required")
	}
	return userID, email, nil
}

var rootCmd = &cobra.Command{
	Use:   "capsule",
	Short: "Time capsule service",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Listen Addr: %s\n", cfg.ListenAddr)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Vault:       %s\n", cfg.Vault.Type)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := a.Config()
		if cfg.JWTSecret == "" {
			return fmt.Errorf("jwt_secret must be set to serve the API")
		}

		srv := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: httpapi.NewRouter(a.Service(), cfg.JWTSecret, a.Logger()),
		}

		errCh := make(chan error, 1)
		go func() {
			a.Logger().Info("server listening", "addr", cfg.ListenAddr)
			errCh <- srv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-stop:
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}
		}
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a capsule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, _, err := identity(cmd)
		if err != nil {
			return err
		}

		title, _ := cmd.Flags().GetString("title")
		message, _ := cmd.Flags().GetString("message")
		unlock, _ := cmd.Flags().GetString("unlock")
		privacy, _ := cmd.Flags().GetString("privacy")
		recipients, _ := cmd.Flags().GetStringSlice("recipient")
		attachPaths, _ := cmd.Flags().GetStringSlice("attach")

		unlockAt, err := time.Parse(time.RFC3339, unlock)
		if err != nil {
			return fmt.Errorf("parsing --unlock (expected RFC3339): %w", err)
		}

		a, err := newApp(ctx, "Create")
		if err != nil {
			return err
		}
		defer a.Close()

		var uploads []capsule.AttachmentUpload
		for _, p := range attachPaths {
			f, err := os.Open(p)
			if err != nil {
				return fmt.Errorf("opening attachment %s: %w", p, err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat attachment %s: %w", p, err)
			}

			uploads = append(uploads, capsule.AttachmentUpload{
				Filename:    filepath.Base(p),
				ContentType: attachmentContentType(p),
				Size:        info.Size(),
				Data:        f,
			})
		}

		c, err := a.Service().Create(ctx, capsule.CreateParams{
			OwnerID:     userID,
			Title:       title,
			Message:     message,
			UnlockAt:    unlockAt,
			Privacy:     model.Privacy(privacy),
			Recipients:  recipients,
			Attachments: uploads,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created capsule %s\n", c.ID)
		fmt.Printf("Unlocks at %s\n", c.UnlockAt.Format(time.RFC3339))
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your capsules",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, _, err := identity(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := a.Service().List(ctx, userID)
		if err != nil {
			return err
		}

		if len(views) == 0 {
			fmt.Println("No capsules.")
			return nil
		}

		for _, v := range views {
			lock := "locked"
			if v.Unlocked {
				lock = "unlocked"
			}
			fmt.Printf("%s  %-10s  %-8s  %s  %s\n",
				v.ID,
				v.Status,
				lock,
				v.UnlockAt.Format("2006-01-02 15:04:05"),
				v.Title,
			)
		}
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show CAPSULE_ID",
	Short: "View a capsule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, email, err := identity(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, "Show")
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Service().Get(ctx, args[0], userID, email)
		if err != nil {
			return err
		}

		fmt.Printf("Capsule:   %s\n", v.ID)
		fmt.Printf("Owner:     %s\n", v.OwnerID)
		fmt.Printf("Title:     %s\n", v.Title)
		fmt.Printf("Status:    %s\n", v.Status)
		fmt.Printf("Privacy:   %s\n", v.Privacy)
		fmt.Printf("Unlock at: %s\n", v.UnlockAt.Format(time.RFC3339))
		if v.RevealedAt != nil {
			fmt.Printf("Revealed:  %s\n", v.RevealedAt.Format(time.RFC3339))
		}

		if !v.Content {
			fmt.Println("\n[content locked]")
			return nil
		}

		fmt.Printf("\n%s\n", v.Message)
		if len(v.Attachments) > 0 {
			fmt.Println("\nAttachments:")
			for _, att := range v.Attachments {
				fmt.Printf("  %s  %8d  %s\n", att.ID, att.Size, att.Filename)
			}
		}
		return nil
	},
}

// reveal command
var revealCmd = &cobra.Command{
	Use:   "reveal CAPSULE_ID",
	Short: "Reveal a capsule ahead of its unlock time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, _, err := identity(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, "Reveal")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Reveal(ctx, args[0], userID); err != nil {
			return err
		}

		fmt.Printf("Revealed capsule %s\n", args[0])
		return nil
	},
}

// cancel command
var cancelCmd = &cobra.Command{
	Use:   "cancel CAPSULE_ID",
	Short: "Cancel a capsule, permanently withholding its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, _, err := identity(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, "Cancel")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Cancel(ctx, args[0], userID); err != nil {
			return err
		}

		fmt.Printf("Cancelled capsule %s\n", args[0])
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete CAPSULE_ID",
	Short: "Delete a capsule and its attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, _, err := identity(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, "Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().Delete(ctx, args[0], userID); err != nil {
			return err
		}

		fmt.Printf("Deleted capsule %s\n", args[0])
		return nil
	},
}

// download command
var downloadCmd = &cobra.Command{
	Use:   "download ATTACHMENT_ID",
	Short: "Download an attachment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		userID, email, err := identity(cmd)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(ctx, "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		tmpPath := args[0] + ".partial"
		if output != "" {
			tmpPath = output + ".partial"
		}
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}

		att, err := a.Service().DownloadAttachment(ctx, args[0], userID, email, f)
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
		if err := f.Close(); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("closing output file: %w", err)
		}

		dest := output
		if dest == "" {
			dest = att.Filename
		}
		if err := os.Rename(tmpPath, dest); err != nil {
			return fmt.Errorf("renaming output file: %w", err)
		}

		fmt.Printf("Downloaded %s (%d bytes) to %s\n", att.Filename, att.Size, dest)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history CAPSULE_ID",
	Short: "View a capsule's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, "History")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(ctx, args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("#%d  %-10s  %s  by %s\n",
				e.ID,
				e.Action,
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.PerformedBy,
			)
		}
		return nil
	},
}

// token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for the configured secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, email, err := identity(cmd)
		if err != nil {
			return err
		}

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if cfg.JWTSecret == "" {
			return fmt.Errorf("jwt_secret must be set to issue tokens")
		}

		token, err := httpapi.NewToken(cfg.JWTSecret, userID, email)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("user", "", "Acting user id")
	rootCmd.PersistentFlags().String("email", "", "Acting user email (for recipient access)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().String("title", "", "Capsule title")
	createCmd.Flags().String("message", "", "Capsule message")
	createCmd.Flags().String("unlock", "", "Unlock time (RFC3339)")
	createCmd.Flags().String("privacy", "private", "Privacy tier: private, recipients, or public")
	createCmd.Flags().StringSlice("recipient", nil, "Recipient email (repeatable)")
	createCmd.Flags().StringSlice("attach", nil, "Attachment file path (repeatable)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(revealCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringP("output", "o", "", "Output file path (default: attachment filename)")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tokenCmd)
}
