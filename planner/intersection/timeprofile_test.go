package intersection

import (
	"math"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"

	"git.fiblab.net/sim/behavior-go/entity"
)

// straightTestPath 沿+x方向每米一个点的测试路径
func straightTestPath(n int, laneIDAt func(i int) int32) *entity.Path {
	path := &entity.Path{}
	for i := 0; i <= n; i++ {
		path.Points = append(path.Points, entity.PathPoint{
			Pose: entity.Pose{
				Position: geometry.Point{X: float64(i)},
			},
			LaneIDs: []int32{laneIDAt(i)},
			V:       15,
		})
	}
	return path
}

func TestCalcIntersectionPassingTime(t *testing.T) {
	path := straightTestPath(10, func(i int) int32 { return 7 })

	profile := calcIntersectionPassingTime(path, 0, 7, 1, 2, 2)
	assert.Equal(t, 11, len(profile))
	assert.Equal(t, 0.0, profile[0].T)
	assert.Equal(t, 0.0, profile[0].S)

	// 首段：v_next = min(sqrt(1+2*2*1), 2) = 2，平均速度1.5
	assert.InDelta(t, 1.0/1.5, profile[1].T, 1e-9)
	assert.InDelta(t, 1.0, profile[1].S, 1e-9)

	// 单调性
	for i := 1; i < len(profile); i++ {
		assert.Greater(t, profile[i].T, profile[i-1].T)
		assert.Greater(t, profile[i].S, profile[i-1].S)
	}
	assert.InDelta(t, 10.0, profile[len(profile)-1].S, 1e-9)

	// 速度封顶后每段耗时恒定 d/vCap
	last := profile.PassingTime() - profile[len(profile)-2].T
	assert.InDelta(t, 0.5, last, 1e-9)
}

func TestCalcIntersectionPassingTimeZeroVelocity(t *testing.T) {
	path := straightTestPath(5, func(i int) int32 { return 7 })

	// 静止起步时用速度下限避免除零
	profile := calcIntersectionPassingTime(path, 0, 7, 0, 2, 2)
	assert.False(t, math.IsNaN(profile.PassingTime()))
	assert.False(t, math.IsInf(profile.PassingTime(), 0))
	assert.Greater(t, profile.PassingTime(), 0.0)
}

func TestCalcIntersectionPassingTimeTruncation(t *testing.T) {
	// 前6个点在车道7上，之后离开
	path := straightTestPath(10, func(i int) int32 {
		if i <= 5 {
			return 7
		}
		return 8
	})

	profile := calcIntersectionPassingTime(path, 0, 7, 1, 2, 2)
	// 驶离评估车道后截断：i=1..6共6段
	assert.Equal(t, 7, len(profile))
	assert.InDelta(t, 6.0, profile[len(profile)-1].S, 1e-9)
}

func TestCalcIntersectionPassingTimePassedIntersection(t *testing.T) {
	path := straightTestPath(10, func(i int) int32 { return 8 })

	// 最近点之后不存在评估车道，退化为单点曲线
	profile := calcIntersectionPassingTime(path, 0, 7, 1, 2, 2)
	assert.Equal(t, 1, len(profile))
	assert.Equal(t, 0.0, profile.PassingTime())
}

func TestTimeDistanceProfileLowerBound(t *testing.T) {
	profile := TimeDistanceProfile{
		{T: 0, S: 0}, {T: 1, S: 2}, {T: 2, S: 4}, {T: 4, S: 8},
	}

	i, found := profile.LowerBound(0)
	assert.True(t, found)
	assert.Equal(t, 0, i)

	i, found = profile.LowerBound(1.5)
	assert.True(t, found)
	assert.Equal(t, 2, i)

	i, found = profile.LowerBound(4)
	assert.True(t, found)
	assert.Equal(t, 3, i)

	_, found = profile.LowerBound(4.1)
	assert.False(t, found)
}
