package lanelet

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"

	"git.fiblab.net/sim/behavior-go/entity"
)

const (
	// defaultWidth 地图数据缺失宽度时的车道宽度（m）
	defaultWidth = 3.5
)

var (
	ErrNoUniquePredecessor = errors.New("lanelet has no unique predecessor")
)

// Lanelet 车道段实体
// 功能：表示地图中的一段原子车道，包含中心线几何、转向属性、
// 前驱后继与冲突关系，是路口决策几何计算的基本单元
// 说明：属于一个周期内只读的地图快照，本模块不修改它
type Lanelet struct {
	ctx entity.ITaskContext

	id int32

	// 初始化临时变量

	initPredecessors []*mapv2.LaneConnection
	initSuccessors   []*mapv2.LaneConnection
	initOverlaps     []*mapv2.LaneOverlap

	typ  mapv2.LaneType // 车道类型
	turn mapv2.LaneTurn // 转向类型
	maxV float64        // 车道限速

	predecessors []entity.ILanelet        // 前驱车道
	successors   []entity.ILanelet        // 后继车道
	conflicts    []entity.LaneletConflict // 冲突关系集合

	inJunction      bool // 是否位于路口内
	hasTrafficLight bool // 所在路口是否有信控

	lineLengths    []float64                    // 中心线折线点对应的长度列表
	length         float64                      // 以中心线的长度为车道长度
	width          float64                      // 车道宽度
	lineDirections []geometry.PolylineDirection // 中心线折线段每一段的方向（atan2）
	line           []geometry.Point             // 转成Point的中心线折线
}

// newLanelet 创建并初始化一个新的Lanelet实例
// 功能：根据基础数据创建Lanelet对象，初始化几何信息与属性
// 参数：ctx-任务上下文，base-基础Lane数据
// 返回：初始化完成的Lanelet实例
func newLanelet(ctx entity.ITaskContext, base *mapv2.Lane) *Lanelet {
	l := &Lanelet{
		ctx:              ctx,
		id:               base.Id,
		initPredecessors: base.Predecessors,
		initSuccessors:   base.Successors,
		initOverlaps:     base.Overlaps,
		typ:              base.Type,
		turn:             base.Turn,
		maxV:             base.MaxSpeed,
		width:            base.Width,
	}
	if l.width <= 0 {
		l.width = defaultWidth
	}
	l.line = lo.Map(base.CenterLine.Nodes, func(node *geov2.XYPosition, _ int) geometry.Point {
		return geometry.NewPointFromPb(node)
	})
	if len(l.line) < 2 {
		log.Panicf("lanelet %d has degenerate center line (%d points)", l.id, len(l.line))
	}
	l.lineLengths = geometry.GetPolylineLengths2D(l.line)
	l.length = l.lineLengths[len(l.lineLengths)-1]
	l.lineDirections = geometry.GetPolylineDirections(l.line)
	return l
}

// initWithManager 在管理器初始化后建立Lanelet的连接关系
// 功能：根据初始化数据建立前驱、后继、冲突关系
// 参数：manager-车道管理器
func (l *Lanelet) initWithManager(manager entity.ILaneletManager) {
	for _, conn := range l.initPredecessors {
		l.predecessors = append(l.predecessors, manager.Get(conn.Id))
	}
	for _, conn := range l.initSuccessors {
		l.successors = append(l.successors, manager.Get(conn.Id))
	}
	for _, overlap := range l.initOverlaps {
		l.conflicts = append(l.conflicts, entity.LaneletConflict{
			Other:     manager.Get(overlap.Other.LaneId),
			SelfS:     overlap.Self.S,
			OtherS:    overlap.Other.S,
			SelfFirst: overlap.SelfFirst,
		})
	}
	sort.Slice(l.conflicts, func(i, j int) bool {
		return l.conflicts[i].SelfS < l.conflicts[j].SelfS
	})
	l.initPredecessors = nil
	l.initSuccessors = nil
	l.initOverlaps = nil
}

// setParentJunctionWhenInit 在初始化阶段标注车道所在路口及其信控
// 参数：hasTrafficLight-路口是否有信控程序
func (l *Lanelet) setParentJunctionWhenInit(hasTrafficLight bool) {
	l.inJunction = true
	l.hasTrafficLight = hasTrafficLight
}

// 静态数据

func (l *Lanelet) ID() int32 {
	if l == nil {
		return -1
	}
	return l.id
}

func (l *Lanelet) Type() mapv2.LaneType {
	return l.typ
}

func (l *Lanelet) Turn() mapv2.LaneTurn {
	return l.turn
}

func (l *Lanelet) Length() float64 {
	return l.length
}

func (l *Lanelet) Width() float64 {
	return l.width
}

func (l *Lanelet) MaxV() float64 {
	return l.maxV
}

func (l *Lanelet) CenterLine() []geometry.Point {
	return l.line
}

func (l *Lanelet) CenterLineLengths() []float64 {
	return l.lineLengths
}

func (l *Lanelet) InJunction() bool {
	return l.inJunction
}

func (l *Lanelet) HasTrafficLight() bool {
	return l.hasTrafficLight
}

func (l *Lanelet) Successors() []entity.ILanelet {
	return l.successors
}

func (l *Lanelet) Predecessors() []entity.ILanelet {
	return l.predecessors
}

// UniquePredecessor 获取唯一前驱车道
// 返回：唯一前驱，不唯一或不存在时返回错误
func (l *Lanelet) UniquePredecessor() (entity.ILanelet, error) {
	if len(l.predecessors) != 1 {
		return nil, ErrNoUniquePredecessor
	}
	return l.predecessors[0], nil
}

func (l *Lanelet) Conflicts() []entity.LaneletConflict {
	return l.conflicts
}

// 几何计算

// GetDirectionByS 根据本车道s坐标计算切向角度
func (l *Lanelet) GetDirectionByS(s float64) (direction geometry.PolylineDirection) {
	if s < l.lineLengths[0] || s > l.lineLengths[len(l.lineLengths)-1] {
		log.Debugf("get direction with s %v out of range{%v,%v}",
			s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
		s = lo.Clamp(s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
	}
	if i := sort.SearchFloat64s(l.lineLengths, s); i == 0 {
		direction = l.lineDirections[0]
	} else {
		direction = l.lineDirections[i-1]
	}
	return
}

// GetPositionByS 将当前车道s坐标转换为xy(z)坐标
func (l *Lanelet) GetPositionByS(s float64) (pos geometry.Point) {
	if s < l.lineLengths[0] || s > l.lineLengths[len(l.lineLengths)-1] {
		log.Debugf("get position with s %v out of range{%v,%v}",
			s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
		s = lo.Clamp(s, l.lineLengths[0], l.lineLengths[len(l.lineLengths)-1])
	}
	if i := sort.SearchFloat64s(l.lineLengths, s); i == 0 {
		pos = l.line[0]
	} else {
		sHigh, sLow := l.lineLengths[i], l.lineLengths[i-1]
		k := (s - sLow) / (sHigh - sLow)
		pos = geometry.Blend(l.line[i-1], l.line[i], k)
	}
	return
}

// GetOffsetPositionByS 计算带横向偏移的s坐标位置（offset为正表示右侧）
func (l *Lanelet) GetOffsetPositionByS(s, offset float64) (pos geometry.Point) {
	originalPos := l.GetPositionByS(s)
	direction := l.GetDirectionByS(s)
	unitNormal := geometry.Point{X: math.Cos(direction.Direction - math.Pi/2), Y: math.Sin(direction.Direction - math.Pi/2)}
	return geometry.Point{X: originalPos.X + unitNormal.X*offset, Y: originalPos.Y + unitNormal.Y*offset, Z: originalPos.Z}
}

// ProjectToLane 将xyz坐标投影到车道折线上，计算出对应的s坐标
func (l *Lanelet) ProjectToLane(pos geometry.Point) float64 {
	s := geometry.GetClosestPolylineSToPoint2D(l.line, l.lineLengths, pos)
	return lo.Clamp(s, 0, l.length)
}

func (l *Lanelet) String() string {
	return fmt.Sprintf("Lanelet{ID=%d, Turn=%v, Length=%.1f}", l.id, l.turn, l.length)
}
