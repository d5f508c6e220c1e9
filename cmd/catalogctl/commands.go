package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
)

// catalogctl repair-categories
var repairCategoriesCmd = &cobra.Command{
	Use:   "repair-categories",
	Short: "Repoint products whose sub category no longer exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := bootstrap.Open(ctx, "catalogctl")
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		cache, err := rt.ProductCache()
		if err != nil {
			return err
		}
		svc, err := rt.RepairService(cache)
		if err != nil {
			return err
		}
		report, err := svc.RepairOrphanedProducts(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

// catalogctl sweep-media
var sweepMediaCmd = &cobra.Command{
	Use:   "sweep-media",
	Short: "Delete remote images left behind by interrupted uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := bootstrap.Open(ctx, "catalogctl")
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		remote, err := rt.RemoteStore(ctx, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		job, err := rt.SweepJob(remote)
		if err != nil {
			return err
		}
		if err := job.Run(ctx); err != nil {
			return err
		}
		fmt.Println("media sweep complete")
		return nil
	},
}
