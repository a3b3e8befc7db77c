package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tdr-agent/internal/types"
)

// executed is the resolve output when the request is also sent
type executed struct {
	Result   types.Result `json:"result" yaml:"result"`
	Status   int          `json:"status" yaml:"status"`
	Response any          `json:"response" yaml:"response"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		execute bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Resolve one natural-language query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return newUsageError(fmt.Sprintf("unsupported output format %q (json or yaml)", output))
			}
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return newUsageError("query is required")
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.pipeline.Resolve(cmd.Context(), query)
			if !execute || !result.OK() {
				return render(cmd.OutOrStdout(), output, result)
			}

			resp, err := a.forwarder.Execute(cmd.Context(), *result.APIRequest)
			if err != nil {
				return fmt.Errorf("failed to execute request: %w", err)
			}
			var body any = string(resp.Body)
			var decoded any
			if json.Unmarshal(resp.Body, &decoded) == nil {
				body = decoded
			}
			return render(cmd.OutOrStdout(), output, executed{Result: result, Status: resp.Status, Response: body})
		},
	}

	cmd.Flags().BoolVarP(&execute, "execute", "x", false, "send the resolved request to the threat API")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json, yaml")
	return cmd
}

func render(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
