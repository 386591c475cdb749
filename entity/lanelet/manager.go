package lanelet

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"

	"git.fiblab.net/sim/behavior-go/entity"
)

// Manager Lanelet管理器
// 功能：持有地图快照内的全部车道段，提供按id寻址（arena+索引）
// 说明：作为只读的局部路由图使用——本规划器只做一跳前驱/后继/冲突查询，
// 不做全图搜索
type Manager struct {
	ctx entity.ITaskContext

	data     map[int32]*Lanelet
	lanelets []*Lanelet
}

// NewManager 创建Lanelet管理器实例
// 参数：ctx-任务上下文
// 返回：新创建的管理器实例
func NewManager(ctx entity.ITaskContext) *Manager {
	return &Manager{
		ctx:  ctx,
		data: make(map[int32]*Lanelet),
	}
}

// Init 初始化所有Lanelet
// 功能：根据protobuf数据初始化所有车道段，建立ID映射关系和连接关系
// 参数：pbs-Lane的protobuf数据列表，junctions-Junction的protobuf数据列表
// 说明：使用并行处理提高初始化效率，分两阶段：创建对象和建立连接关系；
// 路口数据用于标注车道所在路口与信控存在性
func (m *Manager) Init(pbs []*mapv2.Lane, junctions []*mapv2.Junction) {
	m.lanelets = parallel.GoMap(pbs, func(pb *mapv2.Lane) *Lanelet {
		return newLanelet(m.ctx, pb)
	})
	m.data = lo.SliceToMap(m.lanelets, func(l *Lanelet) (int32, *Lanelet) {
		return l.id, l
	})
	parallel.GoFor(m.lanelets, func(l *Lanelet) { l.initWithManager(m) })
	for _, junction := range junctions {
		hasTrafficLight := junction.FixedProgram != nil && len(junction.FixedProgram.Phases) > 0 ||
			len(junction.Phases) > 0
		for _, laneID := range junction.LaneIds {
			if l, ok := m.data[laneID]; ok {
				l.setParentJunctionWhenInit(hasTrafficLight)
			} else {
				log.Panicf("junction %d references unknown lane %d", junction.Id, laneID)
			}
		}
	}
}

// Get 根据ID获取Lanelet实例
// 功能：通过ID查找对应的车道段，如果不存在则panic
// 说明：规划输入中引用了地图快照之外的车道id意味着上游地图/路由配置
// 不一致，必须立即失败而不是用默认几何继续——兜底几何可能产生不安全的
// 通行决策
func (m *Manager) Get(id int32) entity.ILanelet {
	if l, ok := m.data[id]; !ok {
		log.Panicf("no id %d in lanelet data", id)
		return nil
	} else {
		return l
	}
}

// GetOrError 根据ID获取Lanelet实例（带错误处理）
// 参数：id-车道段的唯一标识符
// 返回：Lanelet实例和错误信息，如果不存在则返回nil和错误
func (m *Manager) GetOrError(id int32) (entity.ILanelet, error) {
	if l, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in lanelet data", id)
	} else {
		return l, nil
	}
}

// Lanelets 获取全部车道段
func (m *Manager) Lanelets() []entity.ILanelet {
	return lo.Map(m.lanelets, func(l *Lanelet, _ int) entity.ILanelet { return l })
}
