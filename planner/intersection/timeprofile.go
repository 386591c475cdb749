package intersection

import (
	"math"

	"git.fiblab.net/sim/behavior-go/entity"
)

const (
	// minProfileVelocity 前向模拟的速度下限（m/s），避免除零
	minProfileVelocity = 0.1
)

// TimeDistance 时间-里程对
type TimeDistance struct {
	T float64 // 经过时间（s）
	S float64 // 走过的弧长（m）
}

// TimeDistanceProfile 时间-里程曲线
// 功能：从当前车速沿路径前向积分速度/加速度模型得到的
// 经过时间到弧长的单调映射，起点为(0,0)
// 说明：长度为1的退化曲线表示自车已驶过评估车道，下游跳过碰撞检测
type TimeDistanceProfile []TimeDistance

// PassingTime 穿越评估区段所需的总时间
func (p TimeDistanceProfile) PassingTime() float64 {
	return p[len(p)-1].T
}

// LowerBound 查找第一个T不小于t的条目下标
// 返回：下标与是否找到
func (p TimeDistanceProfile) LowerBound(t float64) (int, bool) {
	lo, hi := 0, len(p)
	for lo < hi {
		mid := (lo + hi) / 2
		if p[mid].T < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == len(p) {
		return 0, false
	}
	return lo, true
}

// calcIntersectionPassingTime 计算穿越路口的时间-里程曲线
// 功能：从最近点之后的路径段开始前向模拟：每段长度d上，
// v_next = min(sqrt(v^2 + 2*a_max*d), v_cap)，段平均速度取
// min((v+v_next)/2, v_cap)，经过时间累加d/平均速度
// 参数：path-路径，closestIdx-自车最近点下标，laneID-评估车道id，
// v0-当前车速，vCap-穿越速度上限，maxAcc-最大加速度
// 返回：时间-里程曲线
// 说明：路径在评估车道上出现过之后一旦不再属于该车道即截断；
// 最近点之后完全找不到该车道时视为已驶过路口，返回单点退化曲线
func calcIntersectionPassingTime(
	path *entity.Path, closestIdx int, laneID int32,
	v0, vCap, maxAcc float64,
) TimeDistanceProfile {
	profile := TimeDistanceProfile{{T: 0, S: 0}}
	closestVel := math.Max(minProfileVelocity, math.Abs(v0))
	distSum := 0.0
	passingTime := 0.0
	assignedLaneFound := false

	for i := closestIdx + 1; i < len(path.Points); i++ {
		dist := calcDist2d(path.Points[i-1], path.Points[i])
		distSum += dist
		// 计算段末速度（v_next^2 - v^2 = 2*a*d）
		nextVel := math.Min(
			math.Sqrt(closestVel*closestVel+2*maxAcc*dist),
			vCap,
		)
		// 段内平均速度
		averageVel := math.Min((closestVel+nextVel)/2, vCap)
		passingTime += dist / averageVel
		profile = append(profile, TimeDistance{T: passingTime, S: distSum})
		closestVel = nextVel

		hasObjectiveLaneID := path.Points[i].HasLaneID(laneID)
		if assignedLaneFound && !hasObjectiveLaneID {
			break
		}
		assignedLaneFound = hasObjectiveLaneID
	}
	if !assignedLaneFound {
		// 已经驶过路口
		return TimeDistanceProfile{{T: 0, S: 0}}
	}

	log.Debugf("intersection dist = %f, passing_time = %f", distSum, passingTime)

	return profile
}
