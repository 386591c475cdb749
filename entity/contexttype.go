package entity

import (
	"git.fiblab.net/sim/behavior-go/utils/config"
)

// IClock 可注入的时钟抽象
// 功能：为状态机去抖等时间逻辑提供当前仿真时间，测试中可用假时钟确定性驱动
type IClock interface {
	Now() float64 // 当前仿真时间（秒）
}

// ITaskContext 规划任务上下文
type ITaskContext interface {
	Clock() IClock
	LaneletManager() ILaneletManager
	RuntimeConfig() *config.RuntimeConfig
}
