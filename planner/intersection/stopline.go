package intersection

import (
	"math"

	"git.fiblab.net/sim/behavior-go/entity"
	"git.fiblab.net/sim/behavior-go/planner"
	"git.fiblab.net/sim/behavior-go/utils/geo"
)

// calcDist2d 两路径点的平面距离
func calcDist2d(a, b entity.PathPoint) float64 {
	return math.Hypot(a.Position.X-b.Position.X, a.Position.Y-b.Position.Y)
}

// primaryLaneID 路径点的主车道id（车道标注为空时返回-1）
func primaryLaneID(p entity.PathPoint) int32 {
	if len(p.LaneIDs) == 0 {
		return -1
	}
	return p.LaneIDs[0]
}

// calcClosestIndex 查找距离位姿最近的路径点下标
// 功能：在朝向偏差小于±90°的路径点中取平面距离最近者
// 返回：下标与是否找到
func calcClosestIndex(path *entity.Path, pose entity.Pose) (int, bool) {
	closestIdx := -1
	minDist := math.Inf(1)
	for i, p := range path.Points {
		yawDiff := geo.NormalizeRadian(p.Yaw - pose.Yaw)
		if math.Abs(yawDiff) > math.Pi/2 {
			continue
		}
		d := math.Hypot(p.Position.X-pose.Position.X, p.Position.Y-pose.Position.Y)
		if d < minDist {
			minDist = d
			closestIdx = i
		}
	}
	return closestIdx, closestIdx >= 0
}

// isAheadOf 判断target是否位于base之前（沿base朝向方向）
func isAheadOf(target, base entity.Pose) bool {
	dx := target.Position.X - base.Position.X
	dy := target.Position.Y - base.Position.Y
	return dx*math.Cos(base.Yaw)+dy*math.Sin(base.Yaw) > 0
}

// stepBackIndex 从下标idx沿路径向后退dist弧长，返回退到的下标
func stepBackIndex(path *entity.Path, idx int, dist float64) int {
	acc := 0.0
	i := idx
	for i > 0 && acc < dist {
		acc += calcDist2d(path.Points[i-1], path.Points[i])
		i--
	}
	return i
}

// generateStopLine 计算停止线与可通过判断线的下标
// 功能：找到路径进入首个冲突区域的点，向后退出停止余量得到停止线；
// 再按当前车速的制动距离+反应延迟向后退得到可通过判断线
// 参数：data-输入快照，path-路径，conflictingAreas-冲突区域列表
// 返回：停止线下标、判断线下标、首个进入冲突区域的下标、是否成功
// 说明：冲突区域与路径不相交时软失败（ok=false），本周期放弃规划
func (m *Module) generateStopLine(
	data *planner.Data, path *entity.Path, conflictingAreas []*objectiveArea,
) (stopLineIdx, passJudgeLineIdx, firstIdxInside int, ok bool) {
	firstIdxInside = -1
	for i, p := range path.Points {
		for _, area := range conflictingAreas {
			if geo.PointInPolygon(p.Position, area.polygon) {
				firstIdxInside = i
				break
			}
		}
		if firstIdxInside >= 0 {
			break
		}
	}
	if firstIdxInside < 0 {
		return -1, -1, -1, false
	}

	stopMargin := m.param.StopLineMargin + data.Vehicle.BaseLinkToFront
	stopLineIdx = stepBackIndex(path, firstIdxInside, stopMargin)

	// 制动距离+反应距离决定不可再悔的判断线
	v := math.Abs(data.CurrentV)
	judgeLineDist := v*v/(2*m.param.MaxStopAcceleration) + v*m.param.PassJudgeDelay
	passJudgeLineIdx = stepBackIndex(path, stopLineIdx, judgeLineDist)

	return stopLineIdx, passJudgeLineIdx, firstIdxInside, true
}

// setVelocityFrom 从下标idx起覆盖目标速度（只降不升）
func setVelocityFrom(idx int, v float64, path *entity.Path) {
	for i := idx; i < len(path.Points); i++ {
		path.Points[i].V = math.Min(path.Points[i].V, v)
	}
}
