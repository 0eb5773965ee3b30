package domain

// State 是一次结算尝试的生命周期状态。
type State string

const (
	StateIdle       State = "IDLE"       // 未展示或已结束
	StatePresenting State = "PRESENTING" // 支付面板展示中，等待用户确认
	StateAuthorized State = "AUTHORIZED" // 用户已确认，等待面板关闭
)
