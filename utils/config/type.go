package config

import "math"

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持多种数据源
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 算法说明：
// 1. 如果指定了缓存路径，直接返回
// 2. 否则使用默认命名规则：{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input 指定规划器所有输入数据的配置项
type Input struct {
	URI string    `yaml:"uri"` // MongoDB连接字符串
	Map InputPath `yaml:"map"` // 地图
}

// ControlStep 指定规划周期时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（规划周期，秒）
}

// Control 规划任务控制配置
type Control struct {
	Step ControlStep `yaml:"step"`
}

// Vehicle 自车物理参数配置
type Vehicle struct {
	Length          float64 `yaml:"length"`             // 车长（m）
	Width           float64 `yaml:"width"`              // 车宽（m）
	BaseLinkToFront float64 `yaml:"base_link_to_front"` // 基准点到车头纵向偏移（m）
}

// IntersectionParam 路口决策模块参数
// 功能：路口通行判断的全部阈值配置，加载一次，决策过程中只读
type IntersectionParam struct {
	StateTransitMarginTime     float64 `yaml:"state_transit_margin_time"`     // STOP->GO去抖时间（s）
	DecelVelocity              float64 `yaml:"decel_velocity"`                // 软停车减速目标速度（m/s）
	StopLineMargin             float64 `yaml:"stop_line_margin"`              // 停止线距冲突区入口的余量（m）
	MaxStopAcceleration        float64 `yaml:"max_stop_acceleration"`         // 可通过判断线使用的制动减速度大小（m/s^2）
	PassJudgeDelay             float64 `yaml:"pass_judge_delay"`              // 可通过判断线使用的反应延迟（s）
	StuckVehicleDetectDist     float64 `yaml:"stuck_vehicle_detect_dist"`     // 停止线前方滞留车探测延伸距离（m）
	StuckVehicleIgnoreDist     float64 `yaml:"stuck_vehicle_ignore_dist"`     // 滞留车探测忽略的前导距离（m）
	StuckVehicleVelThr         float64 `yaml:"stuck_vehicle_vel_thr"`         // 滞留车速度阈值（m/s）
	IntersectionVelocity       float64 `yaml:"intersection_velocity"`         // 穿越路口的速度上限（m/s）
	IntersectionMaxAcc         float64 `yaml:"intersection_max_acc"`          // 穿越路口的最大加速度（m/s^2）
	DetectionAreaMargin        float64 `yaml:"detection_area_margin"`         // 探测区横向余量（m）
	DetectionAreaLength        float64 `yaml:"detection_area_length"`         // 探测区沿车道延伸长度（m）
	DetectionAreaAngleThr      float64 `yaml:"detection_area_angle_thr"`      // 目标朝向与探测车道方向的角度阈值（rad）
	MinPredictedPathConfidence float64 `yaml:"min_predicted_path_confidence"` // 预测轨迹置信度下限
	CollisionStartMarginTime   float64 `yaml:"collision_start_margin_time"`   // 碰撞时间窗起始余量（s）
	CollisionEndMarginTime     float64 `yaml:"collision_end_margin_time"`     // 碰撞时间窗结束余量（s）
	ExternalInputTimeout       float64 `yaml:"external_input_timeout"`        // 外部指令有效期（s）
}

// defaultIntersectionParam 路口决策模块的默认参数
func defaultIntersectionParam() IntersectionParam {
	return IntersectionParam{
		StateTransitMarginTime:     2.0,
		DecelVelocity:              30.0 / 3.6,
		StopLineMargin:             3.0,
		MaxStopAcceleration:        2.8,
		PassJudgeDelay:             1.3,
		StuckVehicleDetectDist:     3.0,
		StuckVehicleIgnoreDist:     5.0,
		StuckVehicleVelThr:         3.0 / 3.6,
		IntersectionVelocity:       10.0 / 3.6,
		IntersectionMaxAcc:         2.0,
		DetectionAreaMargin:        0.5,
		DetectionAreaLength:        200.0,
		DetectionAreaAngleThr:      math.Pi / 4,
		MinPredictedPathConfidence: 0.05,
		CollisionStartMarginTime:   5.0,
		CollisionEndMarginTime:     2.0,
		ExternalInputTimeout:       1.0,
	}
}

// UnmarshalYAML 解析前先填入默认参数
// 说明：配置中未出现的字段取默认值，显式写0的字段保持0
// （忽略前导距离、时间窗余量等参数的0是有意义的取值）
func (p *IntersectionParam) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*p = defaultIntersectionParam()
	type plain IntersectionParam
	return unmarshal((*plain)(p))
}

// Planner 行为规划器配置
type Planner struct {
	Vehicle      Vehicle           `yaml:"vehicle"`      // 自车参数
	Intersection IntersectionParam `yaml:"intersection"` // 路口模块参数
}

// ScenarioPose 场景中的带时间戳位姿
type ScenarioPose struct {
	X   float64 `yaml:"x"`
	Y   float64 `yaml:"y"`
	Yaw float64 `yaml:"yaw"`
	T   float64 `yaml:"t,omitempty"` // 相对预测起点的时间（s）
}

// ScenarioPrediction 场景目标的一条预测轨迹
type ScenarioPrediction struct {
	Confidence float64        `yaml:"confidence"`
	Points     []ScenarioPose `yaml:"points"`
}

// ScenarioObject 场景中的感知目标
type ScenarioObject struct {
	ID          int32                `yaml:"id"`
	Type        string               `yaml:"type"` // car/bus/truck/motorbike/bicycle/pedestrian
	X           float64              `yaml:"x"`
	Y           float64              `yaml:"y"`
	Yaw         float64              `yaml:"yaw"`
	V           float64              `yaml:"v"`
	Length      float64              `yaml:"length"`
	Width       float64              `yaml:"width"`
	Predictions []ScenarioPrediction `yaml:"predictions,omitempty"`
}

// ScenarioEgo 场景中的自车状态
type ScenarioEgo struct {
	X   float64 `yaml:"x"`
	Y   float64 `yaml:"y"`
	Yaw float64 `yaml:"yaw"`
	V   float64 `yaml:"v"`
}

// ScenarioFrame 一个规划周期的输入快照
type ScenarioFrame struct {
	Ego       ScenarioEgo      `yaml:"ego"`
	Objects   []ScenarioObject `yaml:"objects,omitempty"`
	External  string           `yaml:"external,omitempty"`   // 外部指令：go/stop，空为无
	ExternalT float64          `yaml:"external_t,omitempty"` // 外部指令发出时刻（仿真秒）
}

// Scenario 规划场景
// 功能：描述一次离线规划回放：自车路线与每个周期的感知快照
// 说明：路径由route中车道的中心线生成，路径点以所在车道id标注
type Scenario struct {
	Route  []int32         `yaml:"route"`  // 自车路线车道id序列
	Frames []ScenarioFrame `yaml:"frames"` // 逐周期输入
}

// Config YAML配置文件的根结构
type Config struct {
	Input    Input    `yaml:"input"`              // 输入
	Control  Control  `yaml:"control"`            // 规划过程控制
	Planner  Planner  `yaml:"planner"`            // 规划器参数
	Scenario Scenario `yaml:"scenario,omitempty"` // 回放场景
}
