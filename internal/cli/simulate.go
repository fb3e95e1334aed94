package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"signal-alerts/internal/app"
)

var (
	simulateKey        string
	simulateLevel      string
	simulatePriorLevel string
	simulatePriorMins  int
	simulateCooldown   int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-escalation",
	Short: "模拟一次升级判定并打印结果",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateKey == "" {
			return errors.New("--key 必须提供")
		}

		opts := app.SimulateOptions{
			EventKey:        simulateKey,
			Level:           simulateLevel,
			PriorLevel:      simulatePriorLevel,
			PriorMinutesAgo: simulatePriorMins,
			CooldownMinutes: simulateCooldown,
		}

		return getApp().SimulateEscalation(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateKey, "key", "", "事件键 (sentinel:cluster)")
	simulateCmd.Flags().StringVar(&simulateLevel, "level", "L1", "候选告警级别 (L0-L4)")
	simulateCmd.Flags().StringVar(&simulatePriorLevel, "prior-level", "", "上次发送级别，留空表示首发")
	simulateCmd.Flags().IntVar(&simulatePriorMins, "prior-minutes-ago", 0, "上次发送距今分钟数")
	simulateCmd.Flags().IntVar(&simulateCooldown, "cooldown-minutes", 0, "冷却窗口分钟数 (默认取配置)")
}
