// 平面多边形谓词工具，补充common geometry包缺少的多边形相交/包含判断
package geo

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
)

// 多边形以顶点序列表示（不重复首点），至少3个点才有效

// NormalizeRadian 将角度规范化到(-π, π]
func NormalizeRadian(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// cross 叉积 (b-a)×(c-a)
func cross(a, b, c geometry.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment 判断点c是否落在线段ab上（共线前提下）
func onSegment(a, b, c geometry.Point) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}

// SegmentsIntersect 判断两线段是否相交（含端点接触与共线重叠）
func SegmentsIntersect(p1, p2, q1, q2 geometry.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(q1, q2, p1) {
		return true
	}
	if d2 == 0 && onSegment(q1, q2, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, q2) {
		return true
	}
	return false
}

// PointInPolygon 判断点是否在多边形内（射线法，边界视作在内）
func PointInPolygon(p geometry.Point, poly []geometry.Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[j], poly[i]
		// 边界上
		if cross(a, b, p) == 0 && onSegment(a, b, p) {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// SegmentIntersectsPolygon 判断线段是否与多边形相交（含完全位于内部的情况）
func SegmentIntersectsPolygon(p1, p2 geometry.Point, poly []geometry.Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if SegmentsIntersect(p1, p2, poly[j], poly[i]) {
			return true
		}
	}
	return PointInPolygon(p1, poly)
}

// PolylineIntersectsPolygon 判断折线是否进入多边形
func PolylineIntersectsPolygon(line, poly []geometry.Point) bool {
	if len(line) == 0 || len(poly) < 3 {
		return false
	}
	if len(line) == 1 {
		return PointInPolygon(line[0], poly)
	}
	for i := 1; i < len(line); i++ {
		if SegmentIntersectsPolygon(line[i-1], line[i], poly) {
			return true
		}
	}
	return false
}

// PolygonsIntersect 判断两多边形是否相交（边相交或一方包含另一方）
func PolygonsIntersect(a, b []geometry.Point) bool {
	if len(a) < 3 || len(b) < 3 {
		return false
	}
	na, nb := len(a), len(b)
	for i, j := 0, na-1; i < na; j, i = i, i+1 {
		for k, l := 0, nb-1; k < nb; l, k = k, k+1 {
			if SegmentsIntersect(a[j], a[i], b[l], b[k]) {
				return true
			}
		}
	}
	return PointInPolygon(a[0], b) || PointInPolygon(b[0], a)
}

// PolygonsDisjoint 判断两多边形是否不相交
func PolygonsDisjoint(a, b []geometry.Point) bool {
	return !PolygonsIntersect(a, b)
}

// DistancePointToSegment 点到线段的距离
func DistancePointToSegment(p, a, b geometry.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	apx, apy := p.X-a.X, p.Y-a.Y
	l2 := abx*abx + aby*aby
	if l2 == 0 {
		return math.Hypot(apx, apy)
	}
	t := (apx*abx + apy*aby) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(apx-t*abx, apy-t*aby)
}

// DistancePointToPolygon 点到多边形的距离（在内部时为0）
func DistancePointToPolygon(p geometry.Point, poly []geometry.Point) float64 {
	n := len(poly)
	if n == 0 {
		return math.Inf(1)
	}
	if PointInPolygon(p, poly) {
		return 0
	}
	d := math.Inf(1)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		d = math.Min(d, DistancePointToSegment(p, poly[j], poly[i]))
	}
	return d
}

// RectanglePolygon 由中心位姿与长宽生成矩形多边形（顶点逆时针）
// 说明：用于把包围盒外形的目标转为占位多边形
func RectanglePolygon(center geometry.Point, yaw, length, width float64) []geometry.Point {
	c, s := math.Cos(yaw), math.Sin(yaw)
	hl, hw := length/2, width/2
	corners := [4][2]float64{
		{hl, hw}, {-hl, hw}, {-hl, -hw}, {hl, -hw},
	}
	poly := make([]geometry.Point, 4)
	for i, corner := range corners {
		poly[i] = geometry.Point{
			X: center.X + corner[0]*c - corner[1]*s,
			Y: center.Y + corner[0]*s + corner[1]*c,
			Z: center.Z,
		}
	}
	return poly
}
