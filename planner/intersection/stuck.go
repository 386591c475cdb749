package intersection

import (
	"math"

	"git.fiblab.net/sim/behavior-go/entity"
	"git.fiblab.net/sim/behavior-go/planner"
	"git.fiblab.net/sim/behavior-go/utils/geo"
)

// isTargetStuckVehicleType 是否为滞留检测关注的车辆类目标
// 说明：自行车不计入滞留判断
func isTargetStuckVehicleType(o *entity.TrackedObject) bool {
	switch o.Type {
	case entity.ObjectCar, entity.ObjectBus, entity.ObjectTruck,
		entity.ObjectMotorbike:
		return true
	}
	return false
}

// checkStuckVehicle 路口内滞留车检测
// 功能：构造从自车最近点到停止线前方（延伸探测距离+车长、扣除忽略
// 前导距离）的探测走廊；任何纵向速度不超过阈值且占位多边形与走廊
// 相交的车辆类目标都触发滞留条件，首个命中即返回
// 说明：不依赖预测轨迹，只看当前占位
func (m *Module) checkStuckVehicle(
	data *planner.Data, path *entity.Path, closestIdx, stopLineIdx int,
) bool {
	detectLength := m.param.StuckVehicleDetectDist + data.Vehicle.Length
	stuckVehicleDetectArea := m.generateEgoCorridorPolygon(
		path, closestIdx, stopLineIdx, detectLength, m.param.StuckVehicleIgnoreDist,
	)
	m.debug.StuckVehicleDetectArea = stuckVehicleDetectArea
	if len(stuckVehicleDetectArea) == 0 {
		return false
	}

	for _, object := range data.Objects {
		if !isTargetStuckVehicleType(object) {
			continue // 非目标车辆类型
		}
		objV := math.Abs(object.V)
		if objV > m.param.StuckVehicleVelThr {
			continue // 非滞留车辆
		}

		// 占位多边形是否落入探测走廊
		objFootprint := footprintPolygon(object)
		if !geo.PolygonsDisjoint(objFootprint, stuckVehicleDetectArea) {
			log.Debugf("stuck vehicle found: %v", object)
			m.debug.StuckTargets = append(m.debug.StuckTargets, object)
			return true
		}
	}
	return false
}
