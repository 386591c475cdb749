package intersection

// State 通行决策状态
type State int

const (
	GO   State = iota // 允许通过
	STOP              // 禁止通过
)

func (s State) String() string {
	switch s {
	case GO:
		return "GO"
	case STOP:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// StateMachine 带去抖的两态决策状态机
// 功能：在GO/STOP之间切换，STOP->GO方向需要GO请求不间断持续超过
// marginTime才生效，防止感知噪声导致决策抖动
// 说明：每个路口模块实例私有，规划周期内独占访问，无需加锁；
// 时间由外部注入（Now秒数），测试中可确定性驱动
type StateMachine struct {
	state      State
	marginTime float64  // STOP->GO去抖时间（s）
	startTime  *float64 // STOP->GO待定时间戳，nil表示未计时
}

// NewStateMachine 创建状态机，初始状态为GO
func NewStateMachine(marginTime float64) *StateMachine {
	return &StateMachine{
		state:      GO,
		marginTime: marginTime,
	}
}

// SetStateWithMarginTime 按去抖规则请求状态转移
// 参数：state-请求的目标状态，now-当前时间（秒）
// 算法说明：
// 1. 请求与当前相同：清除待定时间戳，不变
// 2. 请求STOP：立即转移，清除待定时间戳
// 3. 请求GO：首次请求记录now为待定时间戳；已有时间戳时仅当
//    (now-待定)超过marginTime才转移；期间任何STOP请求都会清零重计
// 4. 其他请求值非法：记录日志并忽略，保持当前状态
func (m *StateMachine) SetStateWithMarginTime(state State, now float64) {
	// 相同状态请求
	if m.state == state {
		m.startTime = nil // 重置计时
		return
	}

	// GO -> STOP
	if state == STOP {
		m.state = STOP
		m.startTime = nil // 重置计时
		return
	}

	// STOP -> GO
	if state == GO {
		if m.startTime == nil {
			t := now
			m.startTime = &t
		} else {
			duration := now - *m.startTime
			if duration > m.marginTime {
				m.state = GO
				m.startTime = nil // 重置计时
			}
		}
		return
	}

	log.Errorf("unsuitable state %v. ignore request.", state)
}

// SetState 直接设置状态（不经过去抖）
func (m *StateMachine) SetState(state State) {
	m.state = state
}

// SetMarginTime 设置去抖时间
func (m *StateMachine) SetMarginTime(t float64) {
	m.marginTime = t
}

// State 获取当前状态
func (m *StateMachine) State() State {
	return m.state
}
