package entity

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// Pose 二维位姿（位置+朝向角）
type Pose struct {
	Position geometry.Point // 位置坐标
	Yaw      float64        // 朝向角（atan2，弧度）
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose{X=%.2f, Y=%.2f, Yaw=%.3f}", p.Position.X, p.Position.Y, p.Yaw)
}

// PathPoint 路径点
// 功能：规划路径上的一个点，携带所属车道与目标速度
// 说明：V是唯一允许本规划器修改的字段，其余字段在一个规划周期内只读
type PathPoint struct {
	Pose
	LaneIDs []int32 // 所属车道id列表（按优先级排序，首元素为主车道）
	V       float64 // 目标速度（m/s，输出字段）
}

// HasLaneID 判断路径点是否属于指定车道
func (p PathPoint) HasLaneID(laneID int32) bool {
	for _, id := range p.LaneIDs {
		if id == laneID {
			return true
		}
	}
	return false
}

// Path 规划路径
// 功能：带车道标注的有序路径点序列
// 说明：一个规划周期内下标稳定，输出路径保持点数与顺序不变
type Path struct {
	Points []PathPoint
}

// Clone 深拷贝路径
// 功能：复制路径及其所有点，用于需要保留原始路径的场合
func (p *Path) Clone() *Path {
	points := make([]PathPoint, len(p.Points))
	copy(points, p.Points)
	for i := range points {
		points[i].LaneIDs = append([]int32(nil), p.Points[i].LaneIDs...)
	}
	return &Path{Points: points}
}

// ObjectType 感知目标分类
type ObjectType int

const (
	ObjectUnknown ObjectType = iota
	ObjectCar
	ObjectBus
	ObjectTruck
	ObjectMotorbike
	ObjectBicycle
	ObjectPedestrian
)

func (t ObjectType) String() string {
	switch t {
	case ObjectCar:
		return "car"
	case ObjectBus:
		return "bus"
	case ObjectTruck:
		return "truck"
	case ObjectMotorbike:
		return "motorbike"
	case ObjectBicycle:
		return "bicycle"
	case ObjectPedestrian:
		return "pedestrian"
	default:
		return "unknown"
	}
}

// PredictedPose 预测轨迹上的一个带时间戳位姿
// 说明：T为相对于感知快照时刻的秒数，单调递增
type PredictedPose struct {
	Pose
	T float64
}

// PredictedPath 预测轨迹
// 功能：上游预测模块给出的一条带置信度的未来轨迹
type PredictedPath struct {
	Confidence float64         // 置信度 [0,1]
	Points     []PredictedPose // 带时间戳的位姿序列
}

// TrackedObject 跟踪目标
// 功能：感知快照中的一个周车目标，含当前运动状态、外形与预测轨迹
// 说明：本规划器不修改该结构，每个周期使用新的快照
type TrackedObject struct {
	ID   int32
	Type ObjectType

	Pose
	V float64 // 纵向速度（m/s，可为负，负值表示与朝向相反）

	Length float64 // 外形长度（m）
	Width  float64 // 外形宽度（m）
	// 显式多边形外形（可选），为空时用Length/Width按位姿生成矩形
	Footprint []geometry.Point

	PredictedPaths []*PredictedPath
}

func (o *TrackedObject) String() string {
	return fmt.Sprintf("TrackedObject{ID=%d, Type=%v, %v, V=%.2f}", o.ID, o.Type, o.Pose, o.V)
}

// IntersectionStatus 外部路口指令状态
type IntersectionStatus int

const (
	IntersectionStatusNone IntersectionStatus = iota
	IntersectionStatusGo
	IntersectionStatusStop
)

// ExternalCommand 外部干预指令
// 功能：外部（远程协助等）对某一决策类别的覆盖指令
// 说明：T为指令发出时刻（仿真秒），超过有效期后指令失效
type ExternalCommand struct {
	Status IntersectionStatus
	T      float64
}

// StopReason 停车原因记录
// 功能：机器可读的停车依据，供调用方聚合发布
type StopReason struct {
	Reason   string           // 类别标签
	StopPose Pose             // 停车位姿
	Points   []geometry.Point // 促成停车的目标位置点（诊断/可视化用）
}

// VehicleInfo 自车物理参数
type VehicleInfo struct {
	Length          float64 // 车长（m）
	Width           float64 // 车宽（m）
	BaseLinkToFront float64 // 基准点到车头的纵向偏移（m）
}

// LaneletConflict 车道冲突关系
// 功能：描述本车道与另一车道的空间冲突点
type LaneletConflict struct {
	Other     ILanelet // 冲突车道
	SelfS     float64  // 冲突点在本车道上的s坐标
	OtherS    float64  // 冲突点在冲突车道上的s坐标
	SelfFirst bool     // 是否本车道优先
}

// entity/lanelet/lanelet.go的依赖倒置
type ILanelet interface {
	ID() int32
	Type() mapv2.LaneType                                  // 车道类型
	Turn() mapv2.LaneTurn                                  // 转向属性
	Length() float64                                       // 中心线长度
	Width() float64                                        // 车道宽度
	MaxV() float64                                         // 车道限速
	CenterLine() []geometry.Point                          // 中心线折线
	CenterLineLengths() []float64                          // 中心线折线点累积长度
	InJunction() bool                                      // 是否位于路口内
	HasTrafficLight() bool                                 // 所在路口是否有信控
	GetPositionByS(s float64) geometry.Point               // s坐标转位置
	GetDirectionByS(s float64) geometry.PolylineDirection  // s坐标处切向
	GetOffsetPositionByS(s, offset float64) geometry.Point // 带横向偏移的s坐标转位置
	ProjectToLane(pos geometry.Point) float64              // 位置投影为s坐标
	Successors() []ILanelet                                // 后继车道（一跳）
	Predecessors() []ILanelet                              // 前驱车道（一跳）
	UniquePredecessor() (ILanelet, error)                  // 唯一前驱
	Conflicts() []LaneletConflict                          // 冲突车道集合

	String() string
}

// entity/lanelet/manager.go的依赖倒置
// 说明：Get在id缺失时panic——地图与路由配置不一致属于上游致命错误，
// 不允许以默认几何静默替代（替代可能产生不安全的通行决策）
type ILaneletManager interface {
	Get(id int32) ILanelet
	GetOrError(id int32) (ILanelet, error)
	Lanelets() []ILanelet
}
