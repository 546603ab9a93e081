package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var keyName string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage operator API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an API key and print it once",
	Long: `Create an API key for the admin endpoints.

The raw key is printed exactly once. Only its hash is stored, so a lost key
has to be revoked and replaced.

Examples:
  imgctl keys create --name deploy-bot`,
	Args: cobra.NoArgs,
	RunE: runKeysCreate,
}

var keysListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List API keys",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runKeysList,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <prefix>",
	Short: "Revoke the API key with the given prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

func init() {
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "Name describing who uses the key")
	_ = keysCreateCmd.MarkFlagRequired("name")

	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysRevokeCmd)
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	keys, err := appBackend.Keys(getContext())
	if err != nil {
		return err
	}

	issued, err := keys.Create(getContext(), keyName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created key %q (prefix %s)\n", issued.Key.Name, issued.Key.Prefix)
	fmt.Fprintln(out, "Store it now, it will not be shown again:")
	fmt.Fprintln(out, issued.RawKey)
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	keys, err := appBackend.Keys(getContext())
	if err != nil {
		return err
	}

	list, err := keys.List(getContext())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No API keys.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PREFIX\tNAME\tCREATED\tLAST USED\tSTATUS")
	for _, k := range list {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.RFC3339)
		}
		status := "active"
		if k.Revoked() {
			status = "revoked"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", k.Prefix, k.Name, k.CreatedAt.Format(time.RFC3339), lastUsed, status)
	}
	return w.Flush()
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	keys, err := appBackend.Keys(getContext())
	if err != nil {
		return err
	}

	if err := keys.Revoke(getContext(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Revoked key %s\n", args[0])
	return nil
}
