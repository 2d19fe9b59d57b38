package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/modelclient"
	"github.com/sells-group/multiview/internal/pipeline"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the effective model configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("models"); err != nil {
			return err
		}
		pcfg, err := pipeline.NewConfig(cfg)
		if err != nil {
			return err
		}
		if modelsJSON {
			return printModelsJSON(cmd.OutOrStdout(), pcfg)
		}
		return printModels(cmd.OutOrStdout(), pcfg, cfg)
	},
}

func printModels(w io.Writer, pcfg pipeline.Config, c *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tMODEL\tPROVIDER\tREADY")
	row := func(role, m string) {
		route := modelclient.ParseRoute(m)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", role, route.Model, route.Provider, readiness(route.Provider, c))
	}
	row("analysis", pcfg.AnalysisModel)
	for _, v := range pcfg.Viewpoints {
		row(strings.ToLower(v.Type.String()), v.Model)
	}
	row("synthesis", pcfg.SynthesisModel)
	return tw.Flush()
}

// readiness reports whether a provider can be called with the current keys.
// OpenRouter calls can still succeed with a per-request key.
func readiness(p modelclient.Provider, c *config.Config) string {
	switch p {
	case modelclient.ProviderAnthropic:
		return yesNo(c.Anthropic.Key != "")
	case modelclient.ProviderGemini:
		return yesNo(c.Gemini.Key != "")
	default:
		if c.OpenRouter.Key != "" {
			return "yes"
		}
		return "per-request key"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printModelsJSON(w io.Writer, pcfg pipeline.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Analysis   string               `json:"analysis"`
		Viewpoints []pipeline.Viewpoint `json:"viewpoints"`
		Synthesis  string               `json:"synthesis"`
	}{pcfg.AnalysisModel, pcfg.Viewpoints, pcfg.SynthesisModel})
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(modelsCmd)
}
