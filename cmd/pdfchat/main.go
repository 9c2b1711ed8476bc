package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"pdfchat/internal/app"
	"pdfchat/internal/config"
	"pdfchat/internal/credential"
	"pdfchat/internal/export"
	"pdfchat/internal/fs"
	"pdfchat/internal/pdfchat"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	ephemeral bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it is missing.
func loadConfig() (*config.Config, map[string]string, error) {
	if err := app.LoadEnvFile(".env"); err != nil {
		return nil, nil, err
	}

	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// openApp reads the config and creates an App without touching the network.
// The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Login", "Ask").
func openApp(cmd *cobra.Command, operation string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if ephemeral {
		cfg.Credential.Type = "memory"
	}

	a, err := app.NewApp(cfg, operation,
		app.WithVerbose(verbose),
		app.WithNavigator(&loginNotice{out: cmd.ErrOrStderr()}),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// newApp is openApp followed by restoring the stored session.
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	a, err := openApp(cmd, operation)
	if err != nil {
		return nil, err
	}

	if err := a.Start(cmd.Context()); err != nil {
		a.Close()
		if errors.Is(err, pdfchat.ErrSessionExpired) {
			return nil, pdfchat.ErrSessionExpired
		}
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "pdfchat",
	Short:        "Upload PDFs and chat with them",
	SilenceUsage: true,
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

		clientID := uuid.New().String()
		cfg := config.NewConfig(clientID, defaults["base_dir"])
		if url, _ := cmd.Flags().GetString("api-url"); url != "" {
			cfg.Server.BaseURL = strings.TrimRight(url, "/")
		}
		if encrypt, _ := cmd.Flags().GetBool("encrypt"); encrypt {
			cfg.Credential.Encrypt = true
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Client ID: %s\n", clientID)
		fmt.Printf("Server:    %s\n", cfg.Server.BaseURL)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Client ID:  %s\n", cfg.ClientID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Server:     %s (timeout %s)\n", cfg.Server.BaseURL, cfg.Server.TimeoutOrDefault())
		renderCredentialStatus(cmd.OutOrStdout(), credential.Describe(cfg.Credential))
		return nil
	},
}

// signup command
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, "Signup")
		if err != nil {
			return err
		}
		defer a.Close()

		email, password, err := readCredentials(cmd)
		if err != nil {
			return err
		}

		if _, err := a.Signup(cmd.Context(), email, password); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), readyStyle.Render(`Account created. Run "pdfchat login".`))
		return nil
	},
}

// login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		email, password, err := readCredentials(cmd)
		if err != nil {
			return err
		}

		identity, err := a.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", userStyle.Render(identity.Email))
		return nil
	},
}

func readCredentials(cmd *cobra.Command) (string, string, error) {
	p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		var err error
		if email, err = p.Line("Email: "); err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}
	}

	password, err := p.Password("Password: ")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, "Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

// whoami command
var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Aliases: []string{"status"},
	Short:   "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "WhoAmI")
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		identity := a.Identity()
		if identity == nil {
			fmt.Fprintln(out, `Not logged in. Run "pdfchat login".`)
			return nil
		}

		fmt.Fprintf(out, "Email:  %s\n", userStyle.Render(identity.Email))
		fmt.Fprintf(out, "UID:    %s\n", identity.UID)
		fmt.Fprintf(out, "Server: %s\n", a.Config().Server.BaseURL)

		info, err := a.TokenInfo()
		if err != nil {
			fmt.Fprintln(out, metaStyle.Render("Token:  opaque"))
			return nil
		}
		if !info.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "Token:  expires %s\n", info.ExpiresAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

// files command
var filesCmd = &cobra.Command{
	Use:     "files",
	Aliases: []string{"ls"},
	Short:   "List uploaded PDFs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ListDocuments")
		if err != nil {
			return err
		}
		defer a.Close()

		docs, err := a.Documents(cmd.Context())
		if err != nil {
			return err
		}
		renderDocuments(cmd.OutOrStdout(), docs)
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload PATH",
	Short: "Upload a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		a, err := newApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		doc, err := a.Upload(cmd.Context(), args[0])
		if errors.Is(err, fs.ErrNotPDF) {
			return errors.New(fs.NotPDFText)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded %s %s\n", doc.Filename, metaStyle.Render("("+doc.FileID+")"))

		if !wait || doc.Indexed {
			fmt.Fprintf(out, "Status: %s\n", statusStyle(readiness(doc)))
			return nil
		}

		fmt.Fprintln(out, pendingStyle.Render("Waiting for indexing..."))
		doc, err = a.WaitIndexed(cmd.Context(), doc.FileID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Status: %s\n", statusStyle(readiness(doc)))
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete FILE_ID",
	Short: "Delete a PDF and its conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		a, err := newApp(cmd, "DeleteDocument")
		if err != nil {
			return err
		}
		defer a.Close()

		var confirm pdfchat.Confirmer = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		if yes {
			confirm = alwaysConfirm{}
		}

		err = a.Delete(cmd.Context(), args[0], confirm)
		if errors.Is(err, pdfchat.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
		return nil
	},
}

// new command
var newCmd = &cobra.Command{
	Use:   "new FILE_ID",
	Short: "Start a new conversation and chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "NewConversation")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.NewConversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderTranscript(cmd.OutOrStdout(), snap)
		return runChat(cmd, a)
	},
}

// chat command
var chatCmd = &cobra.Command{
	Use:   "chat FILE_ID",
	Short: "Continue the latest conversation about a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Chat")
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderTranscript(cmd.OutOrStdout(), snap)
		return runChat(cmd, a)
	},
}

// ask command
var askCmd = &cobra.Command{
	Use:   "ask FILE_ID QUESTION...",
	Short: "Ask one question about a PDF",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Ask")
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Open(cmd.Context(), args[0]); err != nil {
			return err
		}

		reply, err := a.Ask(cmd.Context(), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		renderMessage(cmd.OutOrStdout(), reply)
		if reply.Error {
			return errors.New("query failed")
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history FILE_ID",
	Short: "Export every conversation about a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "ExportHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if output == "" {
			return a.Export(cmd.Context(), args[0], format, cmd.OutOrStdout())
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		if err := a.Export(cmd.Context(), args[0], format, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "History written to %s\n", output)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write debug logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep the credential in memory only")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("api-url", "", "Backend base URL")
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt the stored credential with age")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().StringP("email", "e", "", "Account email")
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringP("email", "e", "", "Account email")
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("wait", "w", false, "Wait until the PDF is indexed")
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringP("format", "f", "md", "Output format: "+strings.Join(export.Formats, ", "))
	historyCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
}
