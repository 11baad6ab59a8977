package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jhmac/sneebly/internal/config"
	"github.com/jhmac/sneebly/internal/safety"
	"github.com/jhmac/sneebly/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize sneebly's workspace state: store layout, default config, identity checksums",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := resolveWorkspace()

		if _, err := store.Open(ws); err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		path := configPath
		if path == "" {
			path = filepath.Join(ws, ".sneebly", "config.yaml")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		identity := safety.NewIdentityGuard(ws, cfg.Safety.IdentityFiles)
		if err := identity.Initialize(); err != nil {
			return fmt.Errorf("initialize identity checksums: %w", err)
		}

		fmt.Printf("sneebly initialized at %s\n", ws)
		fmt.Printf("config: %s\n", path)
		fmt.Printf("identity files tracked: %d\n", len(cfg.Safety.IdentityFiles))
		return nil
	},
}
