package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crusont/crusont/internal/model"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long:  "Create, list, and ban the user accounts that own API keys.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserBanCmd())
	cmd.AddCommand(newUserUnbanCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		id   string
		tier int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user account",
		Long:  "Register a user account. Pass --id to bind it to an external identity; otherwise an ID is generated.",
		Example: `  crusont user create
  crusont user create --id ile1634927 --tier 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(id, tier)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "External identity to use as the user ID")
	cmd.Flags().IntVar(&tier, "tier", 0, "Access tier for the account")

	return cmd
}

func runUserCreate(id string, tier int) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	user := &model.User{ID: id, Tier: tier}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Println("User created:")
	fmt.Println()
	fmt.Printf("  ID:   %s\n", user.ID)
	fmt.Printf("  Tier: %d\n", user.Tier)
	fmt.Println()
	fmt.Println("  Issue a first key with: crusont key create --user " + user.ID)
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}

	if len(users) == 0 {
		fmt.Println("No users found. Use 'crusont user create' to create one.")
		return nil
	}

	fmt.Printf("%-38s %-6s %-8s %-20s\n", "ID", "TIER", "BANNED", "CREATED")
	fmt.Printf("%-38s %-6s %-8s %-20s\n", "--", "----", "------", "-------")
	for _, u := range users {
		banned := "no"
		if u.Banned {
			banned = "yes"
		}
		created := time.Unix(u.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05")
		fmt.Printf("%-38s %-6d %-8s %-20s\n", u.ID, u.Tier, banned, created)
	}

	return nil
}

// ---------- user ban / unban ----------

func newUserBanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ban <user-id>",
		Short: "Ban a user account",
		Long:  "Ban a user. Their keys keep authenticating but every request is refused until the ban is lifted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserSetBanned(args[0], true)
		},
	}
}

func newUserUnbanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unban <user-id>",
		Short: "Lift a user's ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserSetBanned(args[0], false)
		},
	}
}

func runUserSetBanned(id string, banned bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.SetUserBanned(context.Background(), id, banned); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if banned {
		fmt.Printf("Banned user %q\n", id)
	} else {
		fmt.Printf("Unbanned user %q\n", id)
	}
	return nil
}
