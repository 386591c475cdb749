package intersection_test

import (
	"math"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"

	"git.fiblab.net/sim/behavior-go/entity"
	"git.fiblab.net/sim/behavior-go/entity/lanelet"
	"git.fiblab.net/sim/behavior-go/planner"
	"git.fiblab.net/sim/behavior-go/planner/intersection"
	"git.fiblab.net/sim/behavior-go/utils/config"
)

type fakeClock struct {
	t float64
}

func (c *fakeClock) Now() float64 {
	return c.t
}

type fakeContext struct {
	clock   *fakeClock
	manager entity.ILaneletManager
	rc      *config.RuntimeConfig
}

func (c *fakeContext) Clock() entity.IClock {
	return c.clock
}

func (c *fakeContext) LaneletManager() entity.ILaneletManager {
	return c.manager
}

func (c *fakeContext) RuntimeConfig() *config.RuntimeConfig {
	return c.rc
}

// straightLane 生成沿直线每米一个节点的测试车道
func straightLane(id int32, x0, y0, x1, y1 float64) *mapv2.Lane {
	dx, dy := x1-x0, y1-y0
	n := int(math.Round(math.Hypot(dx, dy)))
	nodes := make([]*geov2.XYPosition, 0, n+1)
	for i := 0; i <= n; i++ {
		k := float64(i) / float64(n)
		nodes = append(nodes, &geov2.XYPosition{X: x0 + k*dx, Y: y0 + k*dy})
	}
	return &mapv2.Lane{
		Id:         id,
		Type:       mapv2.LaneType_LANE_TYPE_DRIVING,
		Turn:       mapv2.LaneTurn_LANE_TURN_STRAIGHT,
		MaxSpeed:   15,
		Width:      3,
		CenterLine: &mapv2.Polyline{Nodes: nodes},
	}
}

// fixture 十字路口测试场景
// 自车路线沿+x方向：进口道100 -> 路口车道200 -> 出口道101；
// 车道210沿+y方向穿过路口，与200在(10,0)冲突，上游为110、下游为111；
// 默认路口无信控（STOP一律硬停车），signaled为true时带信控相位
type fixture struct {
	ctx      *fakeContext
	module   *intersection.Module
	basePath *entity.Path
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithSignal(t, false)
}

func newFixtureWithSignal(t *testing.T, signaled bool) *fixture {
	l100 := straightLane(100, -30, 0, 0, 0)
	l200 := straightLane(200, 0, 0, 20, 0)
	l101 := straightLane(101, 20, 0, 50, 0)
	l110 := straightLane(110, 10, -45, 10, -15)
	l210 := straightLane(210, 10, -15, 10, 15)
	l111 := straightLane(111, 10, 15, 10, 45)

	l100.Successors = []*mapv2.LaneConnection{{Id: 200}}
	l200.Predecessors = []*mapv2.LaneConnection{{Id: 100}}
	l200.Successors = []*mapv2.LaneConnection{{Id: 101}}
	l101.Predecessors = []*mapv2.LaneConnection{{Id: 200}}
	l110.Successors = []*mapv2.LaneConnection{{Id: 210}}
	l210.Predecessors = []*mapv2.LaneConnection{{Id: 110}}
	l210.Successors = []*mapv2.LaneConnection{{Id: 111}}
	l111.Predecessors = []*mapv2.LaneConnection{{Id: 210}}

	l200.Overlaps = []*mapv2.LaneOverlap{
		{
			Self:      &geov2.LanePosition{LaneId: 200, S: 10},
			Other:     &geov2.LanePosition{LaneId: 210, S: 15},
			SelfFirst: false,
		},
	}
	l210.Overlaps = []*mapv2.LaneOverlap{
		{
			Self:      &geov2.LanePosition{LaneId: 210, S: 15},
			Other:     &geov2.LanePosition{LaneId: 200, S: 10},
			SelfFirst: true,
		},
	}

	junction := &mapv2.Junction{Id: 300, LaneIds: []int32{200, 210}}
	if signaled {
		junction.Phases = []*mapv2.AvailablePhase{{}}
	}
	junctions := []*mapv2.Junction{junction}

	ctx := &fakeContext{
		clock: &fakeClock{},
		rc:    config.NewRuntimeConfig(config.Config{}),
	}
	manager := lanelet.NewManager(ctx)
	manager.Init(
		[]*mapv2.Lane{l100, l200, l101, l110, l210, l111},
		junctions,
	)
	ctx.manager = manager

	f := &fixture{
		ctx:      ctx,
		module:   intersection.New(ctx, 0, 200),
		basePath: buildPath(manager, []int32{100, 200, 101}),
	}
	return f
}

// buildPath 由路线车道中心线生成带车道标注的路径
func buildPath(manager entity.ILaneletManager, route []int32) *entity.Path {
	path := &entity.Path{}
	for _, laneID := range route {
		l := manager.Get(laneID)
		line := l.CenterLine()
		lengths := l.CenterLineLengths()
		for i, p := range line {
			yaw := l.GetDirectionByS(lengths[i]).Direction
			if len(path.Points) > 0 &&
				geometry.Distance(path.Points[len(path.Points)-1].Position, p) < 1e-6 {
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
	return path
}

func (f *fixture) data(egoX, egoV float64, objects ...*entity.TrackedObject) *planner.Data {
	return &planner.Data{
		CurrentPose: entity.Pose{Position: geometry.Point{X: egoX}},
		CurrentV:    egoV,
		Vehicle: entity.VehicleInfo{
			Length:          5,
			Width:           2,
			BaseLinkToFront: 3.8,
		},
		Objects: objects,
	}
}

// crossingVehicle 从南侧沿210接近路口的车辆，预测轨迹穿过自车走廊
func crossingVehicle() *entity.TrackedObject {
	o := &entity.TrackedObject{
		ID:   1,
		Type: entity.ObjectCar,
		Pose: entity.Pose{
			Position: geometry.Point{X: 10, Y: -20},
			Yaw:      math.Pi / 2,
		},
		V:      2.5,
		Length: 4.5,
		Width:  2,
	}
	pred := &entity.PredictedPath{Confidence: 0.8}
	for i := 0; i <= 40; i++ {
		pred.Points = append(pred.Points, entity.PredictedPose{
			Pose: entity.Pose{
				Position: geometry.Point{X: 10, Y: -20 + float64(i)},
				Yaw:      math.Pi / 2,
			},
			T: 0.4 * float64(i),
		})
	}
	o.PredictedPaths = []*entity.PredictedPath{pred}
	return o
}

// stuckVehicle 停在路口出口处（自车走廊内、停止线前方）的静止车辆
func stuckVehicle() *entity.TrackedObject {
	return &entity.TrackedObject{
		ID:   2,
		Type: entity.ObjectCar,
		Pose: entity.Pose{
			Position: geometry.Point{X: 22, Y: 0},
		},
		V:      0,
		Length: 4.5,
		Width:  2,
	}
}

func assertStopped(t *testing.T, path *entity.Path, reason *entity.StopReason) {
	assert.NotNil(t, reason)
	if reason == nil {
		return
	}
	assert.Equal(t, intersection.StopReasonIntersection, reason.Reason)
	// 停止线之后速度清零，之前不受影响
	assert.Equal(t, 0.0, path.Points[len(path.Points)-1].V)
	assert.Equal(t, 15.0, path.Points[0].V)
	stopX := reason.StopPose.Position.X
	for _, p := range path.Points {
		if p.Position.X >= stopX {
			assert.Equal(t, 0.0, p.V)
		} else {
			assert.Equal(t, 15.0, p.V)
		}
	}
}

func assertUnchanged(t *testing.T, path *entity.Path) {
	for _, p := range path.Points {
		assert.Equal(t, 15.0, p.V)
	}
}

func TestPlanNoObjectsGo(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	reason, ok := f.module.Plan(f.data(-12, 5), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.GO, f.module.State())
	assertUnchanged(t, path)
}

func TestPlanCrossingVehicleStops(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	reason, ok := f.module.Plan(f.data(-12, 5, crossingVehicle()), path)
	assert.True(t, ok)
	assert.Equal(t, intersection.STOP, f.module.State())
	assertStopped(t, path, reason)

	// 停止线位于冲突区入口之前
	assert.Less(t, reason.StopPose.Position.X, 8.5)
	assert.Equal(t, 1, len(f.module.Debug().ConflictingTargets))
	assert.NotEmpty(t, reason.Points)
}

func TestPlanCrossingVehicleLowConfidenceIgnored(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	o := crossingVehicle()
	o.PredictedPaths[0].Confidence = 0.01
	reason, ok := f.module.Plan(f.data(-12, 5, o), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.GO, f.module.State())
	assertUnchanged(t, path)
}

func TestPlanPedestrianIgnored(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	o := crossingVehicle()
	o.Type = entity.ObjectPedestrian
	reason, ok := f.module.Plan(f.data(-12, 5, o), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assertUnchanged(t, path)
}

func TestPlanWrongDirectionIgnored(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	// 朝向与探测车道方向相反的目标不参与碰撞判断
	o := crossingVehicle()
	o.Yaw = -math.Pi / 2
	reason, ok := f.module.Plan(f.data(-12, 5, o), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assertUnchanged(t, path)
}

func TestPlanReversingVehicleDirectionCorrected(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	// 倒车目标：朝向相反但速度为负，校正后仍与探测车道方向兼容
	o := crossingVehicle()
	o.Yaw = -math.Pi / 2
	o.V = -2.5
	reason, ok := f.module.Plan(f.data(-12, 5, o), path)
	assert.True(t, ok)
	assertStopped(t, path, reason)
}

func TestPlanSignaledStraightSoftStop(t *testing.T) {
	f := newFixtureWithSignal(t, true)
	path := f.basePath.Clone()

	// 有信控的直行车道：STOP降级为软停车（减速而非停死），不产生停车原因
	reason, ok := f.module.Plan(f.data(-12, 5, crossingVehicle()), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.STOP, f.module.State())

	decel := f.ctx.rc.Intersection.DecelVelocity
	assert.InDelta(t, decel, path.Points[len(path.Points)-1].V, 1e-9)
	assert.Equal(t, 15.0, path.Points[0].V)
	for _, p := range path.Points {
		assert.Greater(t, p.V, 0.0)
	}
}

func TestPlanSignaledStuckStillHardStop(t *testing.T) {
	f := newFixtureWithSignal(t, true)
	path := f.basePath.Clone()

	// 滞留车触发时即使有信控也硬停车
	reason, ok := f.module.Plan(f.data(-12, 5, stuckVehicle()), path)
	assert.True(t, ok)
	assertStopped(t, path, reason)
}

func TestPlanStuckVehicleStops(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	reason, ok := f.module.Plan(f.data(-12, 5, stuckVehicle()), path)
	assert.True(t, ok)
	assert.Equal(t, intersection.STOP, f.module.State())
	assertStopped(t, path, reason)
	assert.Equal(t, 1, len(f.module.Debug().StuckTargets))
}

func TestPlanMovingVehicleNotStuck(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	o := stuckVehicle()
	o.V = 5 // 高于滞留速度阈值
	reason, ok := f.module.Plan(f.data(-12, 5, o), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assertUnchanged(t, path)
}

func TestPlanExternalStop(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	data := f.data(-12, 5)
	data.External = &entity.ExternalCommand{
		Status: entity.IntersectionStatusStop, T: f.ctx.clock.t,
	}
	reason, ok := f.module.Plan(data, path)
	assert.True(t, ok)
	assertStopped(t, path, reason)
}

func TestPlanExternalGoOverridesCollision(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	data := f.data(-12, 5, crossingVehicle())
	data.External = &entity.ExternalCommand{
		Status: entity.IntersectionStatusGo, T: f.ctx.clock.t,
	}
	reason, ok := f.module.Plan(data, path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.GO, f.module.State())
	assertUnchanged(t, path)
}

func TestPlanExternalGoDebouncedFromStop(t *testing.T) {
	f := newFixture(t)

	// t=0：碰撞目标触发STOP
	f.ctx.clock.t = 0
	f.module.Plan(f.data(-12, 5, crossingVehicle()), f.basePath.Clone())
	assert.Equal(t, intersection.STOP, f.module.State())

	// 外部go强制请求GO，但STOP->GO仍需经过去抖
	planWithGo := func() (*entity.StopReason, bool) {
		data := f.data(-12, 5, crossingVehicle())
		data.External = &entity.ExternalCommand{
			Status: entity.IntersectionStatusGo, T: f.ctx.clock.t,
		}
		return f.module.Plan(data, f.basePath.Clone())
	}

	f.ctx.clock.t = 1
	reason, ok := planWithGo()
	assert.True(t, ok)
	assert.NotNil(t, reason)
	assert.Equal(t, intersection.STOP, f.module.State())

	f.ctx.clock.t = 2.5
	planWithGo()
	assert.Equal(t, intersection.STOP, f.module.State())

	f.ctx.clock.t = 3.5
	reason, ok = planWithGo()
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.GO, f.module.State())
}

func TestPlanExternalCommandExpires(t *testing.T) {
	f := newFixture(t)
	f.ctx.clock.t = 10
	path := f.basePath.Clone()

	// 超过有效期的外部stop被忽略
	data := f.data(-12, 5)
	data.External = &entity.ExternalCommand{
		Status: entity.IntersectionStatusStop, T: 5,
	}
	reason, ok := f.module.Plan(data, path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assertUnchanged(t, path)
}

func TestPlanPassJudgeLatch(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	// 自车已越过可通过判断线且状态为GO：锁定通过，忽略碰撞目标
	reason, ok := f.module.Plan(f.data(-2, 5, crossingVehicle()), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.GO, f.module.State())
	assertUnchanged(t, path)
}

func TestPlanExternalStopBreaksLatch(t *testing.T) {
	f := newFixture(t)
	path := f.basePath.Clone()

	// 越过判断线后外部stop仍然生效
	data := f.data(-2, 5)
	data.External = &entity.ExternalCommand{
		Status: entity.IntersectionStatusStop, T: f.ctx.clock.t,
	}
	reason, ok := f.module.Plan(data, path)
	assert.True(t, ok)
	assertStopped(t, path, reason)
}

func TestPlanStopGoDebounce(t *testing.T) {
	f := newFixture(t)

	// t=0：碰撞目标触发STOP
	f.ctx.clock.t = 0
	path := f.basePath.Clone()
	reason, ok := f.module.Plan(f.data(-12, 5, crossingVehicle()), path)
	assert.True(t, ok)
	assert.NotNil(t, reason)
	assert.Equal(t, intersection.STOP, f.module.State())

	// t=1：目标消失，GO请求开始计时，仍保持STOP
	f.ctx.clock.t = 1
	path = f.basePath.Clone()
	reason, ok = f.module.Plan(f.data(-12, 5), path)
	assert.True(t, ok)
	assert.NotNil(t, reason)
	assert.Equal(t, intersection.STOP, f.module.State())

	// t=2.5：持续1.5s不足margin(2s)
	f.ctx.clock.t = 2.5
	path = f.basePath.Clone()
	_, ok = f.module.Plan(f.data(-12, 5), path)
	assert.True(t, ok)
	assert.Equal(t, intersection.STOP, f.module.State())

	// t=3.5：持续2.5s超过margin，恢复GO
	f.ctx.clock.t = 3.5
	path = f.basePath.Clone()
	reason, ok = f.module.Plan(f.data(-12, 5), path)
	assert.True(t, ok)
	assert.Nil(t, reason)
	assert.Equal(t, intersection.GO, f.module.State())
	assertUnchanged(t, path)
}

func TestPlanDebounceResetByNewCollision(t *testing.T) {
	f := newFixture(t)

	f.ctx.clock.t = 0
	f.module.Plan(f.data(-12, 5, crossingVehicle()), f.basePath.Clone())
	assert.Equal(t, intersection.STOP, f.module.State())

	f.ctx.clock.t = 1
	f.module.Plan(f.data(-12, 5), f.basePath.Clone())

	// 计时中再次出现目标，GO计时清零
	f.ctx.clock.t = 2
	f.module.Plan(f.data(-12, 5, crossingVehicle()), f.basePath.Clone())

	f.ctx.clock.t = 3.5
	f.module.Plan(f.data(-12, 5), f.basePath.Clone())
	// 从t=3.5起重新计时，不足margin
	assert.Equal(t, intersection.STOP, f.module.State())
}

func TestPlanIdempotentSameFrame(t *testing.T) {
	f := newFixture(t)

	data := f.data(-12, 5, crossingVehicle())
	path1 := f.basePath.Clone()
	reason1, ok1 := f.module.Plan(data, path1)

	path2 := f.basePath.Clone()
	reason2, ok2 := f.module.Plan(data, path2)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, reason1.StopPose, reason2.StopPose)
	for i := range path1.Points {
		assert.Equal(t, path1.Points[i].V, path2.Points[i].V)
	}
}

func TestPlanDebugAreas(t *testing.T) {
	f := newFixture(t)

	_, ok := f.module.Plan(f.data(-12, 5), f.basePath.Clone())
	assert.True(t, ok)

	debug := f.module.Debug()
	assert.Equal(t, 1, len(debug.ConflictingAreas))
	assert.Equal(t, 1, len(debug.DetectionAreas))
	// 探测区域来源车道：210及其上游110
	assert.Equal(t, [][]int32{{110, 210}}, debug.DetectionLaneletIDs)
	assert.NotEmpty(t, debug.EgoCorridorPolygon)
	assert.NotEmpty(t, debug.StuckVehicleDetectArea)
}
