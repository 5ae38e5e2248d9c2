// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/linuxfoundation/lfx-v2-search-gateway/cmd/service"
	usecase "github.com/linuxfoundation/lfx-v2-search-gateway/internal/service"
	logging "github.com/linuxfoundation/lfx-v2-search-gateway/pkg/log"

	"github.com/spf13/cobra"
)

func init() {
	logging.InitStructureLogConfig()
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "search-admin",
		Short:        "Maintenance commands for the search gateway index",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createIndexCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(pluginsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-index",
		Short: "Create the index with the mapping of every registered type",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := service.StoreImpl(ctx)
			registry := service.RegistryImpl(ctx, store, service.UpstreamImpl(ctx), nil)

			index := service.IndexName()
			mapping, err := registry.Mapping(index)
			if err != nil {
				return fmt.Errorf("failed to build mapping for %s: %w", index, err)
			}
			if err := store.CreateIndex(ctx, index, mapping); err != nil {
				return fmt.Errorf("failed to create index %s: %w", index, err)
			}
			slog.InfoContext(ctx, "index ready", "index", index)
			return nil
		},
	}
}

func reindexCmd() *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Load every resource from the upstream services into the index",
		Long: `Load every resource from the upstream services into the index.

Parents are loaded before their children. Resources that cannot be loaded
are reported and do not stop the run.

Examples:
  search-admin reindex
  search-admin reindex --type OS::Designate::Zone --type OS::Designate::RecordSet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := service.StoreImpl(ctx)
			registry := service.RegistryImpl(ctx, store, service.UpstreamImpl(ctx), nil)

			index := service.IndexName()
			mapping, err := registry.Mapping(index)
			if err != nil {
				return fmt.Errorf("failed to build mapping for %s: %w", index, err)
			}
			if err := store.CreateIndex(ctx, index, mapping); err != nil {
				return fmt.Errorf("failed to create index %s: %w", index, err)
			}

			result, err := usecase.NewReindexer(registry, store).Reindex(ctx, types)
			if result != nil {
				if errPrint := printJSON(cmd, result); errPrint != nil {
					return errPrint
				}
			}
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d resources failed to index", result.Failed, result.Failed+result.Success)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "document types to reindex (default all)")

	return cmd
}

func pluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the registered document types",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := service.StoreImpl(ctx)
			registry := service.RegistryImpl(ctx, store, service.UpstreamImpl(ctx), nil)
			return printJSON(cmd, registry.Info())
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
