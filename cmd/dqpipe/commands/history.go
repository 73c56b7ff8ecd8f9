package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "일별 지표 이력 조회",
	Long: `저장된 일별 지표(daily_metrics)를 기간으로 조회합니다.

Example:
  go run ./cmd/dqpipe history --from 2025-12-01 --to 2025-12-10
  go run ./cmd/dqpipe history --from 2025-12-10 --detail`,
	RunE: runHistory,
}

var (
	historyFrom      string
	historyTo        string
	historyDetail    bool
	historyOverrides pathOverrides
)

func init() {
	rootCmd.AddCommand(historyCmd)

	// Flags
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "시작일 (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "종료일 (기본: from)")
	historyCmd.Flags().BoolVar(&historyDetail, "detail", false, "이벤트 타입 / 플랫폼 / 주문 상태 분포 출력")
	historyCmd.Flags().StringVar(&historyOverrides.outDir, "out-dir", "", "출력 디렉터리 (OUT_DIR)")
	historyCmd.MarkFlagRequired("from")
}

func runHistory(cmd *cobra.Command, args []string) error {
	to := historyTo
	if to == "" {
		to = historyFrom
	}
	if _, err := contracts.DateRange(historyFrom, to); err != nil {
		return err
	}

	a, err := newApp(historyOverrides)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := a.reader.ListDailyMetrics(ctx, historyFrom, to)
	if err != nil {
		return fmt.Errorf("list daily metrics: %w", err)
	}

	PrintHeader("Daily metrics", fmt.Sprintf("Period    : %s ~ %s (%d rows)", historyFrom, to, len(rows)))
	if len(rows) == 0 {
		fmt.Println("  (no rows)")
		return nil
	}

	fmt.Printf("%-10s %8s %8s %8s %7s %7s %7s %7s %9s\n",
		"date", "cust", "events", "orders", "q_cust", "q_evt", "q_ord", "orphan", "dur_p95")
	for _, m := range rows {
		fmt.Printf("%-10s %8d %8d %8d %6.1f%% %6.1f%% %6.1f%% %6.1f%% %9.1f\n",
			m.IngestDate,
			m.CustomersClean,
			m.EventsClean,
			m.OrdersClean,
			m.QuarantineRateCustomers*100,
			m.QuarantineRateEvents*100,
			m.QuarantineRateOrders*100,
			m.OrphanRateEvents*100,
			m.DurationMsP95,
		)
		if historyDetail {
			fmt.Printf("  event_type : %s\n", formatBreakdown(m.EventsByEventType))
			fmt.Printf("  platform   : %s\n", formatBreakdown(m.EventsByPlatform))
			fmt.Printf("  order      : %s\n", formatBreakdown(m.OrdersByStatus))
		}
	}
	return nil
}
