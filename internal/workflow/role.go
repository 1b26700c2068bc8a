package workflow

import (
	"errors"

	"trainhub/console/internal/upstream"
)

// ErrForbidden 当前角色无权访问该页面
var ErrForbidden = errors.New("无权访问")

// Role 账号角色（单一标签值，取代分散的布尔标志）
type Role int

const (
	RoleBranchAccount Role = iota
	RoleOperationManager
	RoleSalesManager
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleSalesManager:
		return "sales_manager"
	case RoleOperationManager:
		return "operation_manager"
	default:
		return "branch_account"
	}
}

// Principal 当前操作员
// Backdoor 与角色正交，仅作为高权限角色进入受限页面的开关；
// OperationManager 在高权限角色兼任运营经理时仍保留运营经理身份
type Principal struct {
	UserID           int64
	Name             string
	Role             Role
	OperationManager bool
	Backdoor         bool
	BranchID         *int64
}

// IsOperationManager 是否具有运营经理身份（含兼任）
func (p Principal) IsOperationManager() bool {
	return p.Role == RoleOperationManager || p.OperationManager
}

// PrincipalFromUser 将 /auth/me 的布尔标志折叠为单一角色
// 多个标志同时为真时取权限最高者，运营经理身份另行保留
func PrincipalFromUser(u *upstream.CurrentUser) Principal {
	p := Principal{
		UserID:           u.ID,
		Name:             u.Name,
		OperationManager: u.IsOperationManager,
		Backdoor:         u.IsBackdoor,
		BranchID:         u.BranchID,
	}
	switch {
	case u.IsSuperAdmin:
		p.Role = RoleSuperAdmin
	case u.IsSalesManager:
		p.Role = RoleSalesManager
	case u.IsOperationManager:
		p.Role = RoleOperationManager
	default:
		p.Role = RoleBranchAccount
	}
	return p
}

// Access 草稿审批页面的权限判定结果
type Access struct {
	Visible            bool
	ForcedBranchID     *int64 // 非空时分校筛选固定为该值
	AllowAllBranches   bool
	ShowBranchSelector bool
}

// DraftApprovalAccess 草稿审批页面权限
//   - 运营经理（含兼任）可见；绑定分校时固定为本分校，不显示分校选择，backdoor 不放宽
//   - 超级管理员、销售经理仅在 backdoor 开启时可见
//   - 其余角色不可见
func DraftApprovalAccess(p Principal) Access {
	if p.IsOperationManager() {
		if p.BranchID != nil {
			id := *p.BranchID
			return Access{Visible: true, ForcedBranchID: &id}
		}
		return Access{Visible: true, AllowAllBranches: true, ShowBranchSelector: true}
	}
	switch p.Role {
	case RoleSuperAdmin, RoleSalesManager:
		if p.Backdoor {
			return Access{Visible: true, AllowAllBranches: true, ShowBranchSelector: true}
		}
	}
	return Access{}
}

// ActionLogAccess 操作日志页面权限：仅超级管理员
func ActionLogAccess(p Principal) bool {
	return p.Role == RoleSuperAdmin
}

// Scope 本次加载的分校范围，BranchID 为 nil 表示全部分校
type Scope struct {
	BranchID *int64
}

// All 是否为全部分校
func (s Scope) All() bool { return s.BranchID == nil }

// ResolveScope 根据权限与请求的分校确定加载范围
// 固定分校优先于任何请求参数
func ResolveScope(a Access, requested *int64) (Scope, error) {
	if !a.Visible {
		return Scope{}, ErrForbidden
	}
	if a.ForcedBranchID != nil {
		id := *a.ForcedBranchID
		return Scope{BranchID: &id}, nil
	}
	if requested != nil {
		id := *requested
		return Scope{BranchID: &id}, nil
	}
	return Scope{}, nil
}

// FilterBranches 返回当前权限下可选择的分校
func FilterBranches(a Access, branches []upstream.Branch) []upstream.Branch {
	if !a.Visible {
		return nil
	}
	if a.ForcedBranchID == nil {
		return branches
	}
	for _, b := range branches {
		if b.ID == *a.ForcedBranchID {
			return []upstream.Branch{b}
		}
	}
	return nil
}
