// Package cmd holds the snake-arena command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aaronzipp/snake-arena/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "snake-arena",
	Short: "Real-time multiplayer snake session server",
	Long: `snake-arena coordinates short multiplayer snake matches over WebSockets:
it tracks rooms and their players, relays turn state between them, decides
when a match is over, and records results for stats and the leaderboard.`,
	SilenceUsage: true,
}

var envFile string

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides DATABASE_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads the environment and applies command line overrides
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if f := cmd.Flags().Lookup("db"); f != nil && f.Changed {
		cfg.DatabasePath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return config.Config{}, err
		}
		cfg.Port = port
	}
	return cfg, cfg.Validate()
}
