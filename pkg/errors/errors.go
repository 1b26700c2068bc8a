package errors

import "errors"

// ErrActionInFlight 同一草稿已有审批/拒绝/编辑请求在处理中
var ErrActionInFlight = errors.New("该草稿已有操作正在处理，请稍后刷新")

// ErrUpstreamUnavailable 培训中心后端不可达
var ErrUpstreamUnavailable = errors.New("后端服务暂不可用，请稍后重试")
