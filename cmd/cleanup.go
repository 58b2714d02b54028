package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/divitutor/backend/internal/config"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/sandbox"
	"github.com/divitutor/backend/internal/storage"
	"github.com/divitutor/backend/internal/video"
)

var cleanupVideosCmd = &cobra.Command{
	Use:   "cleanup-videos",
	Short: "Delete rendered videos older than 24 hours from storage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Mode)
		if err != nil {
			return err
		}
		defer log.Sync()

		objStore, err := storage.New(log, cfg.Storage)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}

		// Only the storage client is exercised here; the rest of the
		// pipeline dependencies are not needed for a sweep.
		svc := video.NewService(nil, nil, nil, nil, nil, nil, sandbox.Client(nil), objStore, log)
		res, err := svc.CleanupOld(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("deleted %d videos\n", res.Deleted)
		for _, name := range res.Files {
			fmt.Println(" ", name)
		}
		return nil
	},
}
