package config

// RuntimeConfig 运行时配置
// 功能：存储规划任务运行时的配置信息，参数默认值在此填充
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All          Config            // 全部配置
	C            Control           // 全局控制配置
	Vehicle      Vehicle           // 自车参数
	Intersection IntersectionParam // 路口模块参数（已填默认值）
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：创建运行时配置对象，进行配置验证和默认值填充
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 说明：确保配置的正确性和一致性，为规划运行提供有效配置
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control
	if rc.C.Step.Interval == 0 {
		rc.C.Step.Interval = 0.1
	}
	rc.Vehicle = config.Planner.Vehicle
	if rc.Vehicle.Length == 0 {
		rc.Vehicle.Length = 5.0
	}
	if rc.Vehicle.Width == 0 {
		rc.Vehicle.Width = 2.0
	}
	if rc.Vehicle.BaseLinkToFront == 0 {
		rc.Vehicle.BaseLinkToFront = 3.8
	}
	if config.Planner.Intersection == (IntersectionParam{}) {
		// 配置中不存在intersection段（未经过yaml解析或整段缺失）
		rc.Intersection = defaultIntersectionParam()
	} else {
		rc.Intersection = config.Planner.Intersection
	}

	return rc
}
