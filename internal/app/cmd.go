package app

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/milijuli/sewa/internal/config"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed はサンプルプロジェクトを投入することを示す。
	CommandSeed Command = "seed"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// defaultSeedFile はseedコマンドの既定の入力ファイル。
const defaultSeedFile = "seed/projects.yaml"

// NewRootCommand はsewaのルートコマンドを生成する。
// サブコマンドなしで起動した場合はserveとして動作する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sewa",
		Short:         "milijuli sewa donation platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandServe, runServe)
		},
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "Start the HTTP API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandServe, runServe)
			},
		},
		&cobra.Command{
			Use:   string(CommandWorker),
			Short: "Run background jobs (update feed fetch, cleanup)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandWorker, runWorker)
			},
		},
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "Apply database migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandMigrate, runMigrate)
			},
		},
		newSeedCommand(w),
		newHealthcheckCommand(),
	)
	return root
}

func newSeedCommand(w io.Writer) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   string(CommandSeed),
		Short: "Load sample projects from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandSeed, func(cfg *config.Config) error {
				return runSeed(cmd.Context(), cfg, file)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", defaultSeedFile, "YAML file with projects to load")
	return cmd
}

// newHealthcheckCommand は軽量サブコマンドのため、設定の読み込みを行わない。
func newHealthcheckCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck(healthcheckURL(port))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "server port (default: $SERVER_PORT or 8080)")
	return cmd
}
