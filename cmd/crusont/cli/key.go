package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crusont/crusont/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke the API keys used to authenticate against the gateway.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// cliLogger returns a quiet logger for service use inside CLI commands.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		userID string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key for a user",
		Long:  "Generate a new API key owned by a user. The raw key is shown once and cannot be retrieved again.",
		Example: `  crusont key create --user ile1634927 --name "CI pipeline"
  crusont key create --user ile1634927`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(userID, name)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "ID of the user that will own the key (required)")
	cmd.Flags().StringVar(&name, "name", "Default Key", "Human-readable name for the key")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runKeyCreate(userID, name string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("user %q not found", userID)
	}

	keySvc := service.NewKeyService(st, cliLogger())
	created, err := keySvc.CreateKey(ctx, user, name)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API key created:")
	fmt.Println()
	fmt.Printf("  Key:  %s\n", created.Plaintext)
	fmt.Printf("  Name: %s\n", created.Key.Name)
	fmt.Printf("  User: %s\n", userID)
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		userID     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a user's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(userID, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "ID of the user whose keys to list (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runKeyList(userID string, jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	keys, err := st.ListAPIKeysByUser(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	type keyRow struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Key     string `json:"key"`
		Created string `json:"created"`
		Used    string `json:"last_used"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		used := "never"
		if k.LastUsed != nil {
			used = time.Unix(*k.LastUsed, 0).UTC().Format("2006-01-02 15:04:05")
		}
		rows[i] = keyRow{
			ID:      k.ID,
			Name:    k.Name,
			Key:     k.MaskedKey(),
			Created: time.Unix(k.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05"),
			Used:    used,
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys found. Use 'crusont key create' to create one.")
		return nil
	}

	fmt.Printf("%-38s %-24s %-16s %-20s %-20s\n", "ID", "NAME", "KEY", "CREATED", "LAST USED")
	fmt.Printf("%-38s %-24s %-16s %-20s %-20s\n", "--", "----", "---", "-------", "---------")
	for _, k := range rows {
		fmt.Printf("%-38s %-24s %-16s %-20s %-20s\n", k.ID, k.Name, k.Key, k.Created, k.Used)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Long:  "Permanently delete an API key. Requests using it fail immediately.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(userID, args[0])
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "ID of the user that owns the key (required)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runKeyRevoke(userID, keyID string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user, err := st.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("user %q not found", userID)
	}

	keySvc := service.NewKeyService(st, cliLogger())
	if err := keySvc.DeleteKey(ctx, user, keyID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key %s\n", keyID)
	return nil
}
