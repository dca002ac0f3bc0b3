package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cowpoke-labs/chairman/internal/config"
	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/cowswap"
	"github.com/cowpoke-labs/chairman/internal/discord"
	"github.com/cowpoke-labs/chairman/internal/forum"
	"github.com/cowpoke-labs/chairman/internal/logger"
	"github.com/cowpoke-labs/chairman/internal/snapshot"

	safeclient "github.com/cowpoke-labs/chairman/internal/safe"
)

func newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "List the actions declared by the configured connections",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(characterPath)
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{Level: "error", Output: os.Stderr})
			manager := connection.NewManager(log)

			for _, cc := range cfg.Connections {
				var conn *connection.Connection
				var err error
				switch cc.Name {
				case "discord":
					conn, err = discord.New("").Connection()
				case "snapshot":
					conn, err = snapshot.New().Connection()
				case "cowforum":
					conn, err = forum.New(cc.URL, "").Connection()
				case "safe":
					conn, err = safeclient.New(cc.Endpoint).Connection()
				case "cowswap":
					conn, err = cowswap.New(cc.Endpoint).Connection()
				default:
					return fmt.Errorf("unknown connection %q in character file", cc.Name)
				}
				if err != nil {
					return err
				}
				if err := manager.Register(conn); err != nil {
					return err
				}
			}

			for _, conn := range manager.Connections() {
				fmt.Printf("%s\n", conn.Name())
				for _, a := range conn.Actions() {
					fmt.Printf("  %s: %s\n", a.Name, a.Description)
					for _, p := range a.Parameters {
						req := "optional"
						if p.Required {
							req = "required"
						}
						fmt.Printf("    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
					}
				}
			}
			return nil
		},
	}
}
