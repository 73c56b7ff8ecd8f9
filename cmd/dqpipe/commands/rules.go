package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonny/dqpipe/backend/internal/rulesconfig"
	"github.com/wonny/dqpipe/backend/pkg/config"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "정규화 / 검증 / 알림 룰 관리",
	Long: `룰 YAML 파일을 확인합니다.

Subcommands:
  show    - 적용될 룰(내장 기본값 + ALERT_* 환경변수 + RULES_FILE)과 해시 출력
  check   - 룰 파일 검증 (알 수 없는 필드 / 범위 오류 / 경고)

Example:
  go run ./cmd/dqpipe rules show
  go run ./cmd/dqpipe rules check rules/default.yaml`,
}

var (
	rulesShowCmd = &cobra.Command{
		Use:   "show",
		Short: "적용될 룰 출력",
		RunE:  showRules,
	}

	rulesCheckCmd = &cobra.Command{
		Use:   "check [file]",
		Short: "룰 파일 검증",
		Args:  cobra.ExactArgs(1),
		RunE:  checkRules,
	}
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}

func showRules(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rules, err := loadRules(cfg)
	if err != nil {
		return err
	}
	hash, err := rulesconfig.Hash(rules)
	if err != nil {
		return err
	}

	source := cfg.Paths.RulesFile
	if source == "" {
		source = "(built-in)"
	}
	PrintHeader("Effective rules",
		fmt.Sprintf("Source    : %s", source),
		fmt.Sprintf("Rules ID  : %s v%s", rules.Meta.RulesID, rules.Meta.Version),
		fmt.Sprintf("Hash      : %s", hash),
	)

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(rules)
}

func checkRules(cmd *cobra.Command, args []string) error {
	path := args[0]

	rules, _, err := rulesconfig.Load(path, nil)
	if err != nil {
		fmt.Printf("❌ %s\n", path)
		return err
	}
	hash, err := rulesconfig.Hash(rules)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s is valid\n", path)
	fmt.Printf("   Rules ID: %s v%s\n", rules.Meta.RulesID, rules.Meta.Version)
	fmt.Printf("   Hash: %s\n", hash)

	warnings := rulesconfig.Warn(rules)
	for _, w := range warnings {
		fmt.Printf("⚠️  [%s] %s\n", w.Code, w.Message)
	}
	return nil
}
