// 路口通行决策模块：根据地图冲突区域、周车预测轨迹与滞留情况，
// 在每个规划周期决定通过/停车，并把决策写入路径速度
package intersection

import (
	"git.fiblab.net/general/common/v2/geometry"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"

	"git.fiblab.net/sim/behavior-go/entity"
	"git.fiblab.net/sim/behavior-go/planner"
	"git.fiblab.net/sim/behavior-go/utils/config"
)

// StopReasonIntersection 停车原因类别标签
const StopReasonIntersection = "Intersection"

// DebugData 一个周期内的调试数据
// 功能：记录几何中间量与触发目标，供日志与测试检查
type DebugData struct {
	ConflictingAreas          [][]geometry.Point
	DetectionAreas            [][]geometry.Point
	DetectionLaneletIDs       [][]int32
	EgoCorridorPolygon        []geometry.Point
	StuckVehicleDetectArea    []geometry.Point
	CandidateCollisionPolygon []geometry.Point
	ConflictingTargets        []*entity.TrackedObject
	StuckTargets              []*entity.TrackedObject
}

// Module 路口决策模块
// 功能：针对一条路口车道的通行判断，实现planner.IModule；
// 规划器内每条相关车道各有一个实例，实例间不共享状态
// 说明：GO/STOP值与去抖时间戳是仅有的跨周期可变状态，
// 其余几何量每周期由新快照重算
type Module struct {
	ctx entity.ITaskContext

	moduleID int32
	laneID   int32

	assignedLanelet entity.ILanelet
	turnDirection   mapv2.LaneTurn
	hasTrafficLight bool

	param *config.IntersectionParam

	stateMachine *StateMachine

	// 每个周期更新

	egoLanelets []entity.ILanelet
	egoCorridor *corridor
	debug       DebugData
}

// New 创建路口决策模块
// 参数：ctx-任务上下文，moduleID-模块id，laneID-评估车道id
// 说明：评估车道id不在地图快照中时panic（上游配置不一致）
func New(ctx entity.ITaskContext, moduleID, laneID int32) *Module {
	assigned := ctx.LaneletManager().Get(laneID)
	param := &ctx.RuntimeConfig().Intersection
	return &Module{
		ctx:             ctx,
		moduleID:        moduleID,
		laneID:          laneID,
		assignedLanelet: assigned,
		turnDirection:   assigned.Turn(),
		hasTrafficLight: assigned.HasTrafficLight(),
		param:           param,
		stateMachine:    NewStateMachine(param.StateTransitMarginTime),
	}
}

// ModuleID 模块id
func (m *Module) ModuleID() int32 {
	return m.moduleID
}

// LaneID 评估车道id
func (m *Module) LaneID() int32 {
	return m.laneID
}

// State 当前决策状态
func (m *Module) State() State {
	return m.stateMachine.State()
}

// Debug 最近一个周期的调试数据
func (m *Module) Debug() *DebugData {
	return &m.debug
}

// isTargetExternalStatus 外部指令是否处于指定状态且未过期
func (m *Module) isTargetExternalStatus(data *planner.Data, status entity.IntersectionStatus) bool {
	return data.External != nil &&
		data.External.Status == status &&
		m.ctx.Clock().Now()-data.External.T < m.param.ExternalInputTimeout
}

// Plan 执行一个周期的路口通行决策
// 功能：几何提取→停止线定位→碰撞/滞留检测→状态机→速度写入
// 参数：data-输入快照，path-路径（原地修改速度）
// 返回：停车原因（无停车时为nil）与是否成功
// 算法说明：
// 1. 解析外部指令（go先算，stop后算、最后生效）
// 2. 提取冲突/探测区域；探测区域为空则空转成功返回
// 3. 放置停止线与可通过判断线；失败则本周期放弃（路径不变）
// 4. 状态为GO且已越过判断线且无外部stop时锁定通过，不再做几何计算
// 5. 碰撞或滞留→请求STOP，经状态机去抖后落地
// 6. STOP时写入停车/减速速度并生成停车原因
func (m *Module) Plan(data *planner.Data, path *entity.Path) (*entity.StopReason, bool) {
	externalGo := m.isTargetExternalStatus(data, entity.IntersectionStatusGo)
	externalStop := m.isTargetExternalStatus(data, entity.IntersectionStatusStop)
	m.debug = DebugData{}

	currentState := m.stateMachine.State()
	log.Debugf("lane_id = %d, state = %v", m.laneID, currentState)

	// 自车走廊（本周期几何基础）
	m.egoLanelets = getEgoLanelets(m.ctx.LaneletManager(), path, m.laneID)
	m.egoCorridor = newCorridor(m.egoLanelets)

	// 冲突区域与探测区域
	conflictingAreas, detectionAreas := getObjectiveAreas(
		m.assignedLanelet, m.egoLanelets, m.param.DetectionAreaLength,
	)
	if len(detectionAreas) == 0 {
		log.Debugf("no detection area. skip computation.")
		return nil, true
	}
	m.debug.ConflictingAreas = lo.Map(conflictingAreas,
		func(a *objectiveArea, _ int) []geometry.Point { return a.polygon })
	m.debug.DetectionAreas = lo.Map(detectionAreas,
		func(a *objectiveArea, _ int) []geometry.Point { return a.polygon })
	m.debug.DetectionLaneletIDs = lo.Map(detectionAreas,
		func(a *objectiveArea, _ int) []int32 { return a.laneletIDs() })

	// 停止线与可通过判断线
	stopLineIdx, passJudgeLineIdx, _, ok := m.generateStopLine(data, path, conflictingAreas)
	if !ok {
		log.Warnf("lane %d: generate stop line failed", m.laneID)
		return nil, false
	}
	if stopLineIdx <= 0 || passJudgeLineIdx <= 0 {
		log.Debugf("stop line or pass judge line is at path head, ignore planning.")
		return nil, true
	}

	// 自车最近点
	closestIdx, ok := calcClosestIndex(path, data.CurrentPose)
	if !ok {
		log.Warnf("lane %d: calc closest index failed", m.laneID)
		return nil, false
	}

	// GO状态下越过判断线后锁定通过，本周期不再评估
	isOverPassJudgeLine := closestIdx > passJudgeLineIdx
	if closestIdx == passJudgeLineIdx {
		isOverPassJudgeLine = isAheadOf(data.CurrentPose, path.Points[passJudgeLineIdx].Pose)
	}
	if currentState == GO && isOverPassJudgeLine && !externalStop {
		log.Debugf("over the pass judge line. no plan needed.")
		return nil, true
	}

	// 动态目标检测
	hasCollision := m.checkCollision(data, path, detectionAreas, closestIdx)
	isStuck := m.checkStuckVehicle(data, path, closestIdx, stopLineIdx)
	isEntryProhibited := hasCollision || isStuck
	// 外部指令覆盖：go优先于检测结果，stop最后生效
	if externalGo {
		isEntryProhibited = false
	}
	if externalStop {
		isEntryProhibited = true
	}
	requestedState := GO
	if isEntryProhibited {
		requestedState = STOP
	}
	m.stateMachine.SetStateWithMarginTime(requestedState, m.ctx.Clock().Now())

	// 速度写入
	if m.stateMachine.State() == STOP {
		const stopVel = 0.0
		// 硬停车：滞留、无信控或非直行车道
		isStopRequired := isStuck || !m.hasTrafficLight ||
			m.turnDirection != mapv2.LaneTurn_LANE_TURN_STRAIGHT
		v := m.param.DecelVelocity
		if isStopRequired {
			v = stopVel
		}
		setVelocityFrom(stopLineIdx, v, path)

		if isStopRequired {
			points := lo.Map(m.debug.ConflictingTargets,
				func(o *entity.TrackedObject, _ int) geometry.Point { return o.Position })
			points = append(points, lo.Map(m.debug.StuckTargets,
				func(o *entity.TrackedObject, _ int) geometry.Point { return o.Position })...)
			return &entity.StopReason{
				Reason:   StopReasonIntersection,
				StopPose: path.Points[stopLineIdx].Pose,
				Points:   points,
			}, true
		}
	}

	return nil, true
}
