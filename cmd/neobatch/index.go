package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthands/neobatch/internal/core/model"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [Label:key ...]",
		Short: "Declare unique lookup indexes in the store",
		Long: `Creates an index for every Label:key argument. Without arguments the
indexes listed in the config file are created.`,
		RunE: runIndex,
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	specs, err := parseIndexSpecs(args)
	if err != nil {
		return err
	}

	a, err := bootstrap(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		specs = a.cfg.Indexes
	}
	if len(specs) == 0 {
		_ = a.close()
		return fmt.Errorf("no indexes given and none configured")
	}

	indexErr := a.writer.CreateIndexes(cmd.Context(), specs)
	closeErr := a.close()
	if indexErr != nil {
		return indexErr
	}
	for _, s := range specs {
		fmt.Printf("index on :%s(%s)\n", s.Label, s.Key)
	}
	return closeErr
}

func parseIndexSpecs(args []string) ([]model.IndexSpec, error) {
	specs := make([]model.IndexSpec, 0, len(args))
	for _, arg := range args {
		label, key, ok := strings.Cut(arg, ":")
		if !ok || !model.ValidIdentifier(label) || !model.ValidIdentifier(key) {
			return nil, fmt.Errorf("invalid index %q, want Label:key", arg)
		}
		specs = append(specs, model.IndexSpec{Label: label, Key: key})
	}
	return specs, nil
}
