package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "파티션 처리 (단일 날짜 또는 기간)",
	Long: `원천 파티션을 처리합니다.

이 명령어는 날짜마다:
- customers / events / orders CSV 로드
- 정규화 → 중복 제거 → 검증 (clean / quarantine 분리)
- 시간별 / 일별 지표 계산
- 부분 적재(partial load) 알림 판정
- 출력 / 리포트 / 실행 이력 저장 (같은 날짜 재처리 시 덮어쓰기)

Example:
  go run ./cmd/dqpipe run --date 2025-12-10
  go run ./cmd/dqpipe run --start 2025-12-01 --end 2025-12-10
  go run ./cmd/dqpipe run --date 2025-12-10 --data-dir data/raw --rules rules/default.yaml`,
	RunE: runPartitions,
}

var (
	runDate      string
	runStart     string
	runEnd       string
	runOverrides pathOverrides
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Flags
	runCmd.Flags().StringVar(&runDate, "date", "", "처리할 ingest_date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runStart, "start", "", "기간 시작일 (포함)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "기간 종료일 (포함)")
	runCmd.Flags().StringVar(&runOverrides.dataDir, "data-dir", "", "원천 파티션 디렉터리 (DATA_DIR)")
	runCmd.Flags().StringVar(&runOverrides.outDir, "out-dir", "", "출력 디렉터리 (OUT_DIR)")
	runCmd.Flags().StringVar(&runOverrides.reportsDir, "reports-dir", "", "리포트 디렉터리 (REPORTS_DIR)")
	runCmd.Flags().StringVar(&runOverrides.rulesFile, "rules", "", "룰 YAML 파일 (RULES_FILE)")
}

// resolveDates turns --date or --start/--end into an inclusive date list
func resolveDates(date, start, end string) ([]string, error) {
	switch {
	case date != "" && (start != "" || end != ""):
		return nil, fmt.Errorf("use either --date or --start/--end")
	case date != "":
		if _, err := contracts.ParseIngestDate(date); err != nil {
			return nil, err
		}
		return []string{date}, nil
	case start != "" && end != "":
		return contracts.DateRange(start, end)
	default:
		return nil, fmt.Errorf("--date or both --start and --end are required")
	}
}

func runPartitions(cmd *cobra.Command, args []string) error {
	dates, err := resolveDates(runDate, runStart, runEnd)
	if err != nil {
		return err
	}

	a, err := newApp(runOverrides)
	if err != nil {
		return err
	}
	defer a.close()

	runner, err := a.newRunner(os.Stdout)
	if err != nil {
		return err
	}

	PrintHeader("dqpipe run",
		fmt.Sprintf("Period    : %s ~ %s (%d dates)", dates[0], dates[len(dates)-1], len(dates)),
		fmt.Sprintf("Data dir  : %s", a.cfg.Paths.DataDir),
		fmt.Sprintf("Rules     : %s (%s)", a.rules.Meta.RulesID, runner.RulesHash()[:12]),
	)

	// Ctrl+C 시 진행 중 날짜는 context 취소로 중단
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, runErr := runner.ProcessRange(ctx, dates)
	for _, res := range results {
		PrintDayResult(res)
	}
	PrintRangeSummary(results)

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}
