package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dqpipe",
	Short: "dqpipe - 일별 파티션 데이터 품질 파이프라인",
	Long: `dqpipe Unified CLI

customers / events / orders 원천 CSV 파티션(ingest_date=YYYY-MM-DD)을
정규화 → 중복 제거 → 검증(clean/quarantine) → 지표 → 부분 적재 알림까지 처리.

Usage:
  go run ./cmd/dqpipe [command]

Examples:
  go run ./cmd/dqpipe run --date 2025-12-10
  go run ./cmd/dqpipe run --start 2025-12-01 --end 2025-12-10
  go run ./cmd/dqpipe api
  go run ./cmd/dqpipe scheduler start
  go run ./cmd/dqpipe rules check rules/default.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug 로그 출력")
}
