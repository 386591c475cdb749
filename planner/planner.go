package planner

import (
	"git.fiblab.net/sim/behavior-go/entity"
)

// Data 规划输入快照
// 功能：一个规划周期内的全部外部输入，只读
// 说明：快照间的过期是预期行为——每个周期用新快照重算几何，不跨周期缓存
type Data struct {
	CurrentPose entity.Pose             // 自车当前位姿
	CurrentV    float64                 // 自车当前标量速度（m/s）
	Vehicle     entity.VehicleInfo      // 自车物理参数
	Objects     []*entity.TrackedObject // 跟踪目标列表（含预测轨迹）
	External    *entity.ExternalCommand // 路口外部干预指令（可为空）
}

// IModule 行为决策模块接口
// 功能：所有场景决策模块（路口等）的统一能力：
// 给定路径与输入快照，产出修改后的路径与停车原因
// 说明：返回值ok为false表示几何前置条件不满足、路径未修改，
// 这不是错误，调用方带着下个周期的新输入重试；
// stopReason为nil表示本周期无停车决定
type IModule interface {
	ModuleID() int32
	Plan(data *Data, path *entity.Path) (stopReason *entity.StopReason, ok bool)
}

// Planner 行为规划器
// 功能：按注册顺序运行各决策模块，聚合速度修改与停车原因
// 说明：单线程逐模块执行，每个模块独享自身状态（GO/STOP与去抖时间戳）
type Planner struct {
	ctx entity.ITaskContext

	modules []IModule
}

// NewPlanner 创建行为规划器
func NewPlanner(ctx entity.ITaskContext) *Planner {
	return &Planner{
		ctx:     ctx,
		modules: make([]IModule, 0),
	}
}

// AddModule 注册决策模块
func (p *Planner) AddModule(m IModule) {
	p.modules = append(p.modules, m)
}

// Modules 获取已注册模块列表
func (p *Planner) Modules() []IModule {
	return p.modules
}

// Run 执行一个规划周期
// 功能：对路径依次运行全部模块，收集停车原因
// 参数：data-输入快照，path-规划路径（原地修改速度字段）
// 返回：本周期产生的停车原因列表
func (p *Planner) Run(data *Data, path *entity.Path) []*entity.StopReason {
	stopReasons := make([]*entity.StopReason, 0)
	for _, m := range p.modules {
		stopReason, ok := m.Plan(data, path)
		if !ok {
			// 几何前置条件不满足，路径未修改，下周期重试
			log.Warnf("module %d: plan skipped, path unchanged", m.ModuleID())
			continue
		}
		if stopReason != nil {
			stopReasons = append(stopReasons, stopReason)
		}
	}
	return stopReasons
}
