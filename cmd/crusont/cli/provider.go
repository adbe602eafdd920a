package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crusont/crusont/internal/model"
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage upstream providers",
		Long:  "Add, list, and remove the upstream AI providers that inference requests are forwarded to.",
	}

	cmd.AddCommand(newProviderAddCmd())
	cmd.AddCommand(newProviderListCmd())
	cmd.AddCommand(newProviderRemoveCmd())

	return cmd
}

// ---------- provider add ----------

func newProviderAddCmd() *cobra.Command {
	var (
		baseURL string
		apiKey  string
		models  []string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an upstream provider",
		Long: `Register an upstream provider with the models it serves. Models are given
as name=endpoint pairs; the endpoint must be one of /v1/chat/completions,
/v1/embeddings, /v1/images/generations, or /v1/audio/speech.`,
		Example: `  crusont provider add openai \
    --base-url https://api.openai.com \
    --api-key $OPENAI_API_KEY \
    --model gpt-4o=/v1/chat/completions \
    --model text-embedding-3-small=/v1/embeddings`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProviderAdd(args[0], baseURL, apiKey, models)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Upstream base URL (required)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Credential sent to the upstream")
	cmd.Flags().StringArrayVar(&models, "model", nil, "Model served by this provider, as name=endpoint (repeatable)")
	cmd.MarkFlagRequired("base-url")

	return cmd
}

func runProviderAdd(name, baseURL, apiKey string, modelArgs []string) error {
	specs := make([]model.ModelSpec, 0, len(modelArgs))
	for _, arg := range modelArgs {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 || parts[0] == "" || !strings.HasPrefix(parts[1], "/v1/") {
			return fmt.Errorf("invalid --model %q (want name=/v1/...)", arg)
		}
		specs = append(specs, model.ModelSpec{Name: parts[0], Endpoint: parts[1]})
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	p := &model.Provider{
		Name:     name,
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Models:   specs,
		IsActive: true,
	}
	if err := st.CreateProvider(context.Background(), p); err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	fmt.Printf("Added provider %q with %d model(s).\n", name, len(specs))
	fmt.Println("Restart the server (or update via the system API) to start routing to it.")
	return nil
}

// ---------- provider list ----------

func newProviderListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProviderList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runProviderList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	providers, err := st.ListProviders(context.Background())
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(providers)
	}

	if len(providers) == 0 {
		fmt.Println("No providers configured. Use 'crusont provider add' to add one.")
		return nil
	}

	fmt.Printf("%-16s %-40s %-8s %-8s\n", "NAME", "BASE URL", "MODELS", "ACTIVE")
	fmt.Printf("%-16s %-40s %-8s %-8s\n", "----", "--------", "------", "------")
	for _, p := range providers {
		active := "yes"
		if !p.IsActive {
			active = "no"
		}
		fmt.Printf("%-16s %-40s %-8d %-8s\n", p.Name, p.BaseURL, len(p.Models), active)
	}

	return nil
}

// ---------- provider remove ----------

func newProviderRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProviderRemove(args[0])
		},
	}
}

func runProviderRemove(name string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.DeleteProvider(context.Background(), name); err != nil {
		return fmt.Errorf("remove provider: %w", err)
	}

	fmt.Printf("Removed provider %q\n", name)
	return nil
}
