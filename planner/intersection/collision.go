package intersection

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"

	"git.fiblab.net/sim/behavior-go/entity"
	"git.fiblab.net/sim/behavior-go/planner"
	"git.fiblab.net/sim/behavior-go/utils/geo"
)

// isTargetCollisionVehicleType 是否为碰撞检测关注的车辆类目标
// 说明：行人等非车辆目标由其他模块处理
func isTargetCollisionVehicleType(o *entity.TrackedObject) bool {
	switch o.Type {
	case entity.ObjectCar, entity.ObjectBus, entity.ObjectTruck,
		entity.ObjectMotorbike, entity.ObjectBicycle:
		return true
	}
	return false
}

// objectPoseWithVelocityDirection 速度符号校正后的目标位姿
// 说明：纵向速度为负（倒车）时朝向取反
func objectPoseWithVelocityDirection(o *entity.TrackedObject) entity.Pose {
	if o.V >= 0 {
		return o.Pose
	}
	pose := o.Pose
	pose.Yaw = geo.NormalizeRadian(pose.Yaw + math.Pi)
	return pose
}

// footprintPolygon 目标当前占位多边形
// 说明：有显式外形时直接使用，否则按位姿与长宽生成矩形
func footprintPolygon(o *entity.TrackedObject) []geometry.Point {
	if len(o.Footprint) >= 3 {
		return o.Footprint
	}
	return geo.RectanglePolygon(o.Position, o.Yaw, o.Length, o.Width)
}

// predictedFootprintPolygon 目标在预测位姿处的占位多边形
func predictedFootprintPolygon(o *entity.TrackedObject, p entity.PredictedPose) []geometry.Point {
	return geo.RectanglePolygon(p.Position, p.Yaw, o.Length, o.Width)
}

// cutPredictedPoints 截断预测轨迹到给定时长之内
// 说明：有限序列上的简单过滤，不修改原数据
func cutPredictedPoints(points []entity.PredictedPose, timeThr float64) []entity.PredictedPose {
	res := make([]entity.PredictedPose, 0, len(points))
	for _, p := range points {
		if p.T < timeThr {
			res = append(res, p)
		}
	}
	return res
}

// checkAngleForTargetLanelets 目标朝向与探测车道方向的兼容性检查
// 功能：目标位于某条探测车道内（含横向余量）且朝向与该处车道切向
// 的夹角小于阈值时认为方向兼容
func (m *Module) checkAngleForTargetLanelets(pose entity.Pose, lanelets []entity.ILanelet) bool {
	for _, l := range lanelets {
		s := l.ProjectToLane(pose.Position)
		d := geometry.Distance(pose.Position, l.GetPositionByS(s))
		if d > l.Width()/2+m.param.DetectionAreaMargin {
			continue
		}
		llAngle := l.GetDirectionByS(s).Direction
		angleDiff := geo.NormalizeRadian(llAngle - pose.Yaw)
		if math.Abs(angleDiff) < m.param.DetectionAreaAngleThr {
			return true
		}
	}
	return false
}

// calcDistanceUntilIntersectionLanelet 自车最近点到评估车道入口的弧长
func (m *Module) calcDistanceUntilIntersectionLanelet(path *entity.Path, closestIdx int) float64 {
	firstIdx := -1
	for i, p := range path.Points {
		if primaryLaneID(p) == m.laneID {
			firstIdx = i
			break
		}
	}
	if firstIdx <= 0 {
		return 0
	}
	dstIdx := firstIdx - 1
	if closestIdx > dstIdx {
		return 0
	}
	distance := 0.0
	for i := closestIdx + 1; i <= dstIdx; i++ {
		distance += calcDist2d(path.Points[i-1], path.Points[i])
	}
	laneFirstPoint := m.assignedLanelet.CenterLine()[0]
	distance += math.Hypot(
		path.Points[dstIdx].Position.X-laneFirstPoint.X,
		path.Points[dstIdx].Position.Y-laneFirstPoint.Y,
	)
	return distance
}

// checkCollision 对探测区域内目标的预测轨迹做碰撞检测
// 功能：筛选探测区域附近、方向兼容的车辆类目标；把每条置信度达标的
// 预测轨迹按穿越时长截断后与自车走廊做相交测试；命中时把目标进入/
// 离开走廊的时间窗经时间-里程曲线映射为自车弧长区间，裁剪走廊到该
// 区间并与目标逐预测位姿的占位多边形做精确相交
// 返回：是否检测到碰撞；触发目标记入debug数据（全量扫描，结果与
// 完整枚举一致）
func (m *Module) checkCollision(
	data *planner.Data, path *entity.Path,
	detectionAreas []*objectiveArea, closestIdx int,
) bool {
	// 自车走廊多边形（未裁剪）
	egoPoly := m.generateEgoCorridorPolygon(path, closestIdx, closestIdx, 0, 0)
	m.debug.EgoCorridorPolygon = egoPoly

	// 目标筛选
	targetObjects := make([]*entity.TrackedObject, 0)
	for _, object := range data.Objects {
		// 忽略行人等非车辆目标
		if !isTargetCollisionVehicleType(object) {
			continue
		}

		// 忽略自车车道内的目标
		if geo.PointInPolygon(object.Position, egoPoly) {
			continue
		}

		// 保留探测区域附近且方向兼容的目标
		for _, area := range detectionAreas {
			if geo.DistancePointToPolygon(object.Position, area.polygon) > m.param.DetectionAreaMargin {
				// 距离探测区域过远
				continue
			}
			objectDirection := objectPoseWithVelocityDirection(object)
			if m.checkAngleForTargetLanelets(objectDirection, area.lanelets) {
				targetObjects = append(targetObjects, object)
				break
			}
		}
	}

	// 计算穿越时长并截断预测轨迹
	timeDistance := calcIntersectionPassingTime(
		path, closestIdx, m.laneID,
		data.CurrentV, m.param.IntersectionVelocity, m.param.IntersectionMaxAcc,
	)
	if len(timeDistance) == 1 {
		// 已驶过路口，无需检测
		return false
	}
	passingTime := timeDistance.PassingTime()

	corridorArc := m.egoCorridor.project(path.Points[closestIdx].Position)
	distanceUntilIntersection := m.calcDistanceUntilIntersectionLanelet(path, closestIdx)
	baseLinkToFront := data.Vehicle.BaseLinkToFront

	collisionDetected := false
	for _, object := range targetObjects {
		hasCollision := false
		for _, predictedPath := range object.PredictedPaths {
			if predictedPath.Confidence < m.param.MinPredictedPathConfidence {
				// 置信度过低的预测轨迹不参与判断
				continue
			}
			points := cutPredictedPoints(predictedPath.Points, passingTime)
			if len(points) < 2 {
				continue
			}
			polyline := lo.Map(points, func(p entity.PredictedPose, _ int) geometry.Point {
				return p.Position
			})
			if !geo.PolylineIntersectsPolygon(polyline, egoPoly) {
				continue
			}

			// 进入/离开走廊的预测轨迹段
			firstSeg, lastSeg := -1, -1
			for i := 0; i+1 < len(points); i++ {
				if geo.SegmentIntersectsPolygon(points[i].Position, points[i+1].Position, egoPoly) {
					if firstSeg < 0 {
						firstSeg = i
					}
					lastSeg = i
				}
			}
			if firstSeg < 0 {
				continue
			}

			// 时间窗（相对预测轨迹起点）
			enterTime := points[firstSeg].T - points[0].T
			exitTime := points[lastSeg+1].T - points[0].T

			startIdx := 0
			if enterTime-m.param.CollisionStartMarginTime > 0 {
				i, found := timeDistance.LowerBound(enterTime - m.param.CollisionStartMarginTime)
				if !found {
					// 自车在目标到达之前已通过
					continue
				}
				startIdx = i
			}
			endIdx, found := timeDistance.LowerBound(exitTime + m.param.CollisionEndMarginTime)
			if !found {
				endIdx = len(timeDistance) - 1
			}

			// 时间窗映射为自车弧长区间
			startArc := math.Max(0, corridorArc+timeDistance[startIdx].S-distanceUntilIntersection)
			endArc := math.Max(0, corridorArc+timeDistance[endIdx].S+baseLinkToFront-distanceUntilIntersection)
			trimmedPoly := m.egoCorridor.polygon(startArc, endArc)
			if len(trimmedPoly) == 0 {
				continue
			}
			m.debug.CandidateCollisionPolygon = trimmedPoly

			for i := firstSeg; i <= lastSeg+1; i++ {
				fp := predictedFootprintPolygon(object, points[i])
				if geo.PolygonsIntersect(trimmedPoly, fp) {
					hasCollision = true
					break
				}
			}
			if hasCollision {
				break
			}
		}
		if hasCollision {
			collisionDetected = true
			m.debug.ConflictingTargets = append(m.debug.ConflictingTargets, object)
		}
	}

	return collisionDetected
}
