package intersection

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"

	"git.fiblab.net/sim/behavior-go/entity"
)

const (
	// jointEpsilon 车道拼接时判定重复端点的距离阈值（m）
	jointEpsilon = 1e-6
	// minPolygonSpan 多边形最小有效弧长跨度（m），低于该值视为退化返回空
	minPolygonSpan = 1e-3
)

// corridor 车道走廊
// 功能：把一段连续车道序列的中心线拼接为单条折线，支持弧长投影
// 与任意弧长区间上的边界多边形裁剪
// 说明：每个周期根据新路径重建，不跨周期缓存
type corridor struct {
	lanelets       []entity.ILanelet
	line           []geometry.Point             // 拼接后的中心线
	lineLengths    []float64                    // 累积长度
	lineDirections []geometry.PolylineDirection // 每段方向
	widths         []float64                    // 每个折线点处的车道宽度
}

// newCorridor 由车道序列创建走廊
// 说明：相邻车道首尾重复的端点只保留一个
func newCorridor(lanelets []entity.ILanelet) *corridor {
	c := &corridor{lanelets: lanelets}
	for _, l := range lanelets {
		line := l.CenterLine()
		start := 0
		if len(c.line) > 0 && geometry.Distance(c.line[len(c.line)-1], line[0]) < jointEpsilon {
			start = 1
		}
		for _, p := range line[start:] {
			c.line = append(c.line, p)
			c.widths = append(c.widths, l.Width())
		}
	}
	c.lineLengths = geometry.GetPolylineLengths2D(c.line)
	c.lineDirections = geometry.GetPolylineDirections(c.line)
	return c
}

// offsetPoint 沿方向dir的右法向偏移offset（offset为负时向左）
func offsetPoint(pos geometry.Point, dir, offset float64) geometry.Point {
	return geometry.Point{
		X: pos.X + offset*math.Cos(dir-math.Pi/2),
		Y: pos.Y + offset*math.Sin(dir-math.Pi/2),
		Z: pos.Z,
	}
}

// length 走廊总弧长
func (c *corridor) length() float64 {
	return c.lineLengths[len(c.lineLengths)-1]
}

// project 将位置投影到走廊中心线，返回弧长s
func (c *corridor) project(pos geometry.Point) float64 {
	s := geometry.GetClosestPolylineSToPoint2D(c.line, c.lineLengths, pos)
	return lo.Clamp(s, 0, c.length())
}

// segmentIndexByS 弧长s所在折线段下标
func (c *corridor) segmentIndexByS(s float64) int {
	i := 0
	for i < len(c.lineLengths)-2 && c.lineLengths[i+1] <= s {
		i++
	}
	return i
}

// positionByS 弧长s处的中心线位置
func (c *corridor) positionByS(s float64) geometry.Point {
	i := c.segmentIndexByS(s)
	sLow, sHigh := c.lineLengths[i], c.lineLengths[i+1]
	if sHigh <= sLow {
		return c.line[i]
	}
	k := lo.Clamp((s-sLow)/(sHigh-sLow), 0, 1)
	return geometry.Blend(c.line[i], c.line[i+1], k)
}

// polygon 裁剪走廊到弧长区间[sStart, sEnd]并返回边界多边形
// 功能：沿区间采样中心线，向两侧各偏移半车道宽生成左右边界，
// 左边界正序+右边界逆序构成多边形
// 说明：sStart被钳制为非负，sEnd被钳制到走廊末端；
// 区间退化（跨度过小）时软失败，返回空多边形
func (c *corridor) polygon(sStart, sEnd float64) []geometry.Point {
	sStart = lo.Clamp(sStart, 0, c.length())
	sEnd = lo.Clamp(sEnd, 0, c.length())
	if sEnd-sStart < minPolygonSpan {
		return nil
	}

	// 采样弧长：区间端点+落在区间内的折线顶点
	samples := []float64{sStart}
	for _, s := range c.lineLengths {
		if s > sStart+minPolygonSpan && s < sEnd-minPolygonSpan {
			samples = append(samples, s)
		}
	}
	samples = append(samples, sEnd)

	left := make([]geometry.Point, 0, len(samples))
	right := make([]geometry.Point, 0, len(samples))
	for _, s := range samples {
		i := c.segmentIndexByS(s)
		pos := c.positionByS(s)
		dir := c.lineDirections[i].Direction
		halfWidth := c.widths[i] / 2
		left = append(left, offsetPoint(pos, dir, -halfWidth))
		right = append(right, offsetPoint(pos, dir, halfWidth))
	}

	polygon := left
	for i := len(right) - 1; i >= 0; i-- {
		polygon = append(polygon, right[i])
	}
	return polygon
}

// getEgoLanelets 自车走廊车道序列
// 功能：评估车道加上路径后续引用的下一车道（若存在）
// 策略：从路径末尾回溯找最后一个仍标注评估车道的点；其后一个点的
// 主车道id即为后继车道；找不到则走廊只含评估车道本身
func getEgoLanelets(manager entity.ILaneletManager, path *entity.Path, laneID int32) []entity.ILanelet {
	assigned := manager.Get(laneID)
	lastIdx := -1
	for i := len(path.Points) - 1; i >= 0; i-- {
		if primaryLaneID(path.Points[i]) == laneID {
			lastIdx = i
			break
		}
	}
	if lastIdx >= 0 && lastIdx+1 < len(path.Points) {
		next := manager.Get(primaryLaneID(path.Points[lastIdx+1]))
		return []entity.ILanelet{assigned, next}
	}
	return []entity.ILanelet{assigned}
}

// objectiveArea 目标区域
// 功能：一个冲突/探测区域的多边形及其来源车道序列
type objectiveArea struct {
	lanelets []entity.ILanelet
	polygon  []geometry.Point
}

// laneletIDs 区域来源车道id列表
func (a *objectiveArea) laneletIDs() []int32 {
	return lo.Map(a.lanelets, func(l entity.ILanelet, _ int) int32 { return l.ID() })
}

// getObjectiveAreas 提取冲突区域与探测区域
// 功能：由评估车道的冲突关系导出冲突车道集合；
// 探测车道剔除自车走廊车道与汇入同一后继的车道（并行汇入流
// 不构成穿越冲突），并沿前驱链向上游延伸到探测长度
// 参数：egoLanelets-自车走廊车道序列，detectionAreaLength-探测长度
// 返回：冲突区域与探测区域列表
func getObjectiveAreas(
	assigned entity.ILanelet, egoLanelets []entity.ILanelet, detectionAreaLength float64,
) (conflictingAreas, detectionAreas []*objectiveArea) {
	egoIDs := lo.SliceToMap(egoLanelets, func(l entity.ILanelet) (int32, struct{}) {
		return l.ID(), struct{}{}
	})
	for _, conflict := range assigned.Conflicts() {
		other := conflict.Other
		if _, ok := egoIDs[other.ID()]; ok {
			continue
		}
		c := newCorridor([]entity.ILanelet{other})
		conflictingAreas = append(conflictingAreas, &objectiveArea{
			lanelets: []entity.ILanelet{other},
			polygon:  c.polygon(0, lo.Clamp(detectionAreaLength, 0, c.length())),
		})
		if mergesWith(assigned, other) {
			continue
		}
		seq := extendUpstream(other, detectionAreaLength)
		dc := newCorridor(seq)
		detectionAreas = append(detectionAreas, &objectiveArea{
			lanelets: seq,
			polygon:  dc.polygon(lo.Clamp(dc.length()-detectionAreaLength, 0, dc.length()), dc.length()),
		})
	}
	return
}

// mergesWith 判断两车道是否汇入同一后继
func mergesWith(a, b entity.ILanelet) bool {
	for _, sa := range a.Successors() {
		for _, sb := range b.Successors() {
			if sa.ID() == sb.ID() {
				return true
			}
		}
	}
	return false
}

// extendUpstream 沿唯一前驱链向上游延伸车道序列到指定长度
// 说明：前驱不唯一或成环时停止延伸
func extendUpstream(l entity.ILanelet, length float64) []entity.ILanelet {
	seq := []entity.ILanelet{l}
	acc := l.Length()
	cur := l
	for acc < length {
		pred, err := cur.UniquePredecessor()
		if err != nil {
			break
		}
		if pred.ID() == l.ID() {
			break
		}
		seq = append([]entity.ILanelet{pred}, seq...)
		acc += pred.Length()
		cur = pred
	}
	return seq
}

// generateEgoCorridorPolygon 生成自车走廊多边形
// 功能：裁剪自车走廊到[startIdx处弧长+ignoreDist, 评估车道末端+extraDist]，
// 起点不早于closestIdx处的自车当前弧长
// 参数：path-路径，closestIdx-自车最近点，startIdx-起始点，
// extraDist-向前延伸距离，ignoreDist-忽略的前导距离
// 返回：多边形，区间退化时为空
func (m *Module) generateEgoCorridorPolygon(
	path *entity.Path, closestIdx, startIdx int, extraDist, ignoreDist float64,
) []geometry.Point {
	c := m.egoCorridor
	startArc := c.project(path.Points[startIdx].Position)
	closestArc := c.project(path.Points[closestIdx].Position)

	sStart := startArc + ignoreDist
	if sStart < closestArc {
		sStart = closestArc
	}
	sEnd := m.egoLanelets[0].Length() + extraDist

	return c.polygon(sStart, sEnd)
}
