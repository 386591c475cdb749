package task

import (
	"git.fiblab.net/general/common/v2/geometry"

	"git.fiblab.net/sim/behavior-go/clock"
	"git.fiblab.net/sim/behavior-go/entity"
	"git.fiblab.net/sim/behavior-go/entity/lanelet"
	"git.fiblab.net/sim/behavior-go/planner"
	"git.fiblab.net/sim/behavior-go/planner/intersection"
	"git.fiblab.net/sim/behavior-go/utils/config"
	"git.fiblab.net/sim/behavior-go/utils/input"
)

// Context 规划任务上下文
// 功能：包含一次规划任务的所有变量和状态，替代全局变量
// 说明：管理时钟、车道管理器、配置与规划器，实现entity.ITaskContext
type Context struct {
	// 时钟
	clock *clock.Clock
	// 缓存文件夹
	cacheDir string

	// Lanelet管理器
	laneletManager entity.ILaneletManager
	// 行为规划器
	planner *planner.Planner

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig

	// 用于初始化的输入
	initRes *input.Input

	// 回放场景的基准路径（每个周期克隆后交给规划器）
	basePath *entity.Path
}

// NewContext 创建新的规划任务上下文
// 功能：初始化规划任务的所有组件和配置
// 参数：cacheDir-缓存目录，c-配置对象
// 返回：初始化完成的Context实例
// 算法说明：
// 1. 创建时钟
// 2. 下载并加载地图数据
// 3. 初始化车道管理器
// 4. 由场景路线生成基准路径
// 5. 为路线上有冲突关系的路口车道注册决策模块
func NewContext(cacheDir string, c config.Config) *Context {
	ctx := &Context{
		cacheDir: cacheDir,
	}
	ctx.clock = clock.New(c.Control.Step)

	// 下载规划所需的数据
	ctx.initRes = input.Init(c, ctx.cacheDir)

	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	mapData := ctx.initRes.Map
	log.Infof("Lane: %v", len(mapData.Lanes))
	log.Infof("Junction: %v", len(mapData.Junctions))

	manager := lanelet.NewManager(ctx)
	manager.Init(mapData.Lanes, mapData.Junctions)
	ctx.laneletManager = manager

	ctx.basePath = ctx.buildPath(c.Scenario.Route)

	ctx.planner = planner.NewPlanner(ctx)
	moduleID := int32(0)
	for _, laneID := range c.Scenario.Route {
		l := ctx.laneletManager.Get(laneID)
		if !l.InJunction() || len(l.Conflicts()) == 0 {
			continue
		}
		ctx.planner.AddModule(intersection.New(ctx, moduleID, laneID))
		log.Infof("register intersection module %d for lane %d", moduleID, laneID)
		moduleID++
	}

	return ctx
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() entity.IClock {
	return ctx.clock
}

func (ctx *Context) LaneletManager() entity.ILaneletManager {
	return ctx.laneletManager
}

func (ctx *Context) Planner() *planner.Planner {
	return ctx.planner
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// buildPath 由路线车道序列生成基准路径
// 功能：顺次拼接各车道中心线，路径点以所在车道id标注，
// 目标速度初始化为车道限速
// 说明：相邻车道首尾重合的端点标注两条车道id（车道过渡点）
func (ctx *Context) buildPath(route []int32) *entity.Path {
	path := &entity.Path{}
	for _, laneID := range route {
		l := ctx.laneletManager.Get(laneID)
		line := l.CenterLine()
		lengths := l.CenterLineLengths()
		for i, p := range line {
			yaw := l.GetDirectionByS(lengths[i]).Direction
			if len(path.Points) > 0 &&
				geometry.Distance(path.Points[len(path.Points)-1].Position, p) < 1e-6 {
				// 车道过渡点：合并并补充车道标注
				last := &path.Points[len(path.Points)-1]
				last.LaneIDs = append(last.LaneIDs, laneID)
				continue
			}
			path.Points = append(path.Points, entity.PathPoint{
				Pose:    entity.Pose{Position: p, Yaw: yaw},
				LaneIDs: []int32{laneID},
				V:       l.MaxV(),
			})
		}
	}
	if len(path.Points) < 2 {
		log.Panicf("route %v produces path with %d points", route, len(path.Points))
	}
	return path
}

// objectTypeOf 场景目标类型字符串转枚举
func objectTypeOf(s string) entity.ObjectType {
	switch s {
	case "car":
		return entity.ObjectCar
	case "bus":
		return entity.ObjectBus
	case "truck":
		return entity.ObjectTruck
	case "motorbike":
		return entity.ObjectMotorbike
	case "bicycle":
		return entity.ObjectBicycle
	case "pedestrian":
		return entity.ObjectPedestrian
	default:
		log.Warnf("unknown object type %q", s)
		return entity.ObjectUnknown
	}
}

// convertFrame 场景帧转规划输入快照
func (ctx *Context) convertFrame(frame config.ScenarioFrame) *planner.Data {
	v := ctx.runtimeConfig.Vehicle
	data := &planner.Data{
		CurrentPose: entity.Pose{
			Position: geometry.Point{X: frame.Ego.X, Y: frame.Ego.Y},
			Yaw:      frame.Ego.Yaw,
		},
		CurrentV: frame.Ego.V,
		Vehicle: entity.VehicleInfo{
			Length:          v.Length,
			Width:           v.Width,
			BaseLinkToFront: v.BaseLinkToFront,
		},
	}
	for _, o := range frame.Objects {
		obj := &entity.TrackedObject{
			ID:   o.ID,
			Type: objectTypeOf(o.Type),
			Pose: entity.Pose{
				Position: geometry.Point{X: o.X, Y: o.Y},
				Yaw:      o.Yaw,
			},
			V:      o.V,
			Length: o.Length,
			Width:  o.Width,
		}
		for _, pred := range o.Predictions {
			pp := &entity.PredictedPath{Confidence: pred.Confidence}
			for _, p := range pred.Points {
				pp.Points = append(pp.Points, entity.PredictedPose{
					Pose: entity.Pose{
						Position: geometry.Point{X: p.X, Y: p.Y},
						Yaw:      p.Yaw,
					},
					T: p.T,
				})
			}
			obj.PredictedPaths = append(obj.PredictedPaths, pp)
		}
		data.Objects = append(data.Objects, obj)
	}
	switch frame.External {
	case "go":
		data.External = &entity.ExternalCommand{
			Status: entity.IntersectionStatusGo, T: frame.ExternalT,
		}
	case "stop":
		data.External = &entity.ExternalCommand{
			Status: entity.IntersectionStatusStop, T: frame.ExternalT,
		}
	case "":
	default:
		log.Warnf("unknown external command %q, ignored", frame.External)
	}
	return data
}

// Run 回放场景并逐周期执行规划
// 功能：按时钟推进场景帧，每个周期克隆基准路径交给规划器，
// 记录停车原因与停止线处速度
// 说明：场景帧耗尽或时钟到达终点即结束
func (ctx *Context) Run(scenario config.Scenario) {
	for i, frame := range scenario.Frames {
		if ctx.clock.Done() {
			log.Warnf("clock finished before scenario frames (%d/%d), stop replay",
				i, len(scenario.Frames))
			break
		}
		data := ctx.convertFrame(frame)
		path := ctx.basePath.Clone()
		stopReasons := ctx.planner.Run(data, path)
		for _, r := range stopReasons {
			log.Infof("[%v] step %d: stop for %s at %v",
				ctx.clock, ctx.clock.InternalStep, r.Reason, r.StopPose)
		}
		if len(stopReasons) == 0 {
			log.Debugf("[%v] step %d: go", ctx.clock, ctx.clock.InternalStep)
		}
		ctx.clock.Step()
	}
	log.Info("scenario replay finished")
}
