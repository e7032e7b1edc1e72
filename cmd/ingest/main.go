package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"protocol-engine/internal/di"
	"protocol-engine/internal/infra"
	"protocol-engine/internal/infra/config"
	"protocol-engine/internal/infra/logger"
	"protocol-engine/internal/usecase"
)

var (
	version = "dev"

	// Run command flags
	filePath       string
	protocolNumber string
	protocolTitle  string
	agencyName     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ingest",
	Short:   "Index protocol documents into the retrieval engine",
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Chunk, embed, and index one protocol document",
	Long: `Run chunks the given protocol text file, embeds each chunk, and
bulk-inserts the resulting passages. The file must hold already-extracted
protocol text; PDF parsing happens upstream.`,
	RunE: runIngest,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE:  showStats,
}

func init() {
	runCmd.Flags().StringVar(&filePath, "file", "", "path to the protocol text file (required)")
	runCmd.Flags().StringVar(&protocolNumber, "protocol", "", "protocol number, e.g. C-001 (required)")
	runCmd.Flags().StringVar(&protocolTitle, "title", "", "protocol title")
	runCmd.Flags().StringVar(&agencyName, "agency", "", "owning agency name (required)")
	_ = runCmd.MarkFlagRequired("file")
	_ = runCmd.MarkFlagRequired("protocol")
	_ = runCmd.MarkFlagRequired("agency")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
}

func setup(ctx context.Context) (*di.ApplicationComponents, func(), error) {
	cfg := config.Load()
	log := logger.New()
	slog.SetDefault(log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	pool, err := infra.NewPassageStorePool(ctx, dsn,
		infra.PoolConfig{MaxConns: cfg.DB.MaxConns, MinConns: cfg.DB.MinConns})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	components, err := di.NewApplicationComponents(cfg, pool, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return components, pool.Close, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	components, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	output, err := components.IndexUsecase.Execute(ctx, usecase.IndexProtocolInput{
		ProtocolNumber: protocolNumber,
		ProtocolTitle:  protocolTitle,
		AgencyName:     agencyName,
		Content:        string(content),
	})
	if err != nil {
		return err
	}

	fmt.Printf("indexed %s: %d passages (chunker %s)\n",
		protocolNumber, output.PassageCount, output.ChunkerUsed)
	return nil
}

func showStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := components.Repo.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("passages:  %d\n", stats.TotalPassages)
	fmt.Printf("protocols: %d\n", stats.TotalProtocols)
	fmt.Printf("agencies:  %d\n", len(stats.Agencies))
	for _, a := range stats.Agencies {
		fmt.Printf("  - %s\n", a)
	}
	return nil
}
