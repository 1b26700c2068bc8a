package workflow

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"trainhub/console/internal/upstream"
)

// ValidationError 提交前的本地校验错误，不会触发任何后端请求
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ApprovalInput 审批表单
type ApprovalInput struct {
	ContractNumber string `json:"contract_number" validate:"required,max=64"`
	HourlyRate     string `json:"hourly_rate"     validate:"required,positive_decimal"`
	Location       string `json:"location"        validate:"omitempty,oneof=internal external"`
}

// RejectionInput 拒绝表单
type RejectionInput struct {
	RejectionReason string `json:"rejection_reason" validate:"required,max=500"`
}

// EditInput 草稿编辑表单
type EditInput struct {
	TeacherName   string `json:"teacher_name"   validate:"required,max=100"`
	StudentName   string `json:"student_name"   validate:"required,max=100"`
	SessionDate   string `json:"session_date"   validate:"required,date_ymd"`
	StartTime     string `json:"start_time"     validate:"omitempty,clock"`
	EndTime       string `json:"end_time"       validate:"omitempty,clock"`
	DurationHours string `json:"duration_hours" validate:"required,positive_decimal"`
	DurationText  string `json:"duration_text"  validate:"required,max=100"`
}

// CreateInput 分校端提交表单
type CreateInput struct {
	BranchID int64 `json:"branch_id" validate:"required,gt=0"`
	EditInput
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	_ = v.RegisterValidation("date_ymd", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(clockLayout, fl.Field().String())
		return err == nil
	})
	return v
}

var fieldMessages = map[string]string{
	"contract_number.required":        "合同编号不能为空",
	"contract_number.max":             "合同编号不能超过 64 个字符",
	"hourly_rate.required":            "课时费不能为空",
	"hourly_rate.positive_decimal":    "课时费必须为大于 0 的数字",
	"location.oneof":                  "地点只能为 internal 或 external",
	"rejection_reason.required":       "拒绝原因不能为空",
	"rejection_reason.max":            "拒绝原因不能超过 500 字",
	"teacher_name.required":           "教师姓名不能为空",
	"student_name.required":           "学员姓名不能为空",
	"session_date.required":           "上课日期不能为空",
	"session_date.date_ymd":           "上课日期格式应为 YYYY-MM-DD",
	"start_time.clock":                "开始时间格式应为 HH:MM",
	"end_time.clock":                  "结束时间格式应为 HH:MM",
	"duration_hours.required":         "课时时长不能为空",
	"duration_hours.positive_decimal": "课时时长必须为大于 0 的数字",
	"duration_text.required":          "时长说明不能为空",
	"branch_id.required":              "分校不能为空",
	"branch_id.gt":                    "分校不能为空",
}

// toValidationError 取第一个字段错误并转换为本地化消息
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: "参数校验失败"}
	}
	fe := verrs[0]
	msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = fmt.Sprintf("字段 %s 无效", fe.Field())
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// ValidateApproval 校验审批表单并生成后端请求
// 地点为空时默认 internal
func ValidateApproval(in ApprovalInput) (*upstream.ApproveDraftRequest, error) {
	in.ContractNumber = strings.TrimSpace(in.ContractNumber)
	in.HourlyRate = strings.TrimSpace(in.HourlyRate)
	in.Location = strings.TrimSpace(in.Location)
	if in.Location == "" {
		in.Location = string(upstream.LocationInternal)
	}

	if err := validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	rate, err := positiveFloat("hourly_rate", in.HourlyRate)
	if err != nil {
		return nil, err
	}
	return &upstream.ApproveDraftRequest{
		ContractNumber: in.ContractNumber,
		HourlyRate:     rate,
		Location:       upstream.Location(in.Location),
	}, nil
}

// ValidateRejection 校验拒绝原因
func ValidateRejection(in RejectionInput) (*upstream.RejectDraftRequest, error) {
	in.RejectionReason = strings.TrimSpace(in.RejectionReason)
	if err := validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}
	return &upstream.RejectDraftRequest{RejectionReason: in.RejectionReason}, nil
}

// ValidateEdit 校验编辑表单并生成部分更新请求
func ValidateEdit(in EditInput) (*upstream.UpdateDraftRequest, error) {
	in = in.trimmed()
	if err := validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}
	if err := checkTimeRange(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}
	hours, err := positiveFloat("duration_hours", in.DurationHours)
	if err != nil {
		return nil, err
	}

	return &upstream.UpdateDraftRequest{
		TeacherName:   in.TeacherName,
		StudentName:   in.StudentName,
		SessionDate:   in.SessionDate,
		StartTime:     optional(in.StartTime),
		EndTime:       optional(in.EndTime),
		DurationHours: hours,
		DurationText:  in.DurationText,
	}, nil
}

// ValidateCreate 校验分校端提交
func ValidateCreate(in CreateInput) (*upstream.CreateDraftRequest, error) {
	in.EditInput = in.EditInput.trimmed()
	if err := validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}
	if err := checkTimeRange(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}
	hours, err := positiveFloat("duration_hours", in.DurationHours)
	if err != nil {
		return nil, err
	}

	return &upstream.CreateDraftRequest{
		BranchID:      in.BranchID,
		TeacherName:   in.TeacherName,
		StudentName:   in.StudentName,
		SessionDate:   in.SessionDate,
		StartTime:     optional(in.StartTime),
		EndTime:       optional(in.EndTime),
		DurationHours: hours,
		DurationText:  in.DurationText,
	}, nil
}

// positiveFloat 将已通过 positive_decimal 的值转换为后端使用的 float64
// 超出 float64 范围（下溢为 0 或上溢为 Inf）时按同一字段错误处理
func positiveFloat(field, value string) (float64, error) {
	f := decimal.RequireFromString(value).InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, &ValidationError{Field: field, Message: fieldMessages[field+".positive_decimal"]}
	}
	return f, nil
}

func (in EditInput) trimmed() EditInput {
	in.TeacherName = strings.TrimSpace(in.TeacherName)
	in.StudentName = strings.TrimSpace(in.StudentName)
	in.SessionDate = strings.TrimSpace(in.SessionDate)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.DurationHours = strings.TrimSpace(in.DurationHours)
	in.DurationText = strings.TrimSpace(in.DurationText)
	return in
}

// checkTimeRange 开始、结束时间都填写时，结束须晚于开始
func checkTimeRange(start, end string) error {
	if start == "" || end == "" {
		return nil
	}
	s, _ := time.Parse(clockLayout, start)
	e, _ := time.Parse(clockLayout, end)
	if !e.After(s) {
		return &ValidationError{Field: "end_time", Message: "结束时间必须晚于开始时间"}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Actions 草稿可执行的操作
type Actions struct {
	CanApprove bool `json:"can_approve"`
	CanReject  bool `json:"can_reject"`
	CanEdit    bool `json:"can_edit"`
}

// AvailableActions 仅待审批草稿可审批、拒绝、编辑；已结束的草稿只读
func AvailableActions(d upstream.SessionDraft) Actions {
	if !d.IsPending() {
		return Actions{}
	}
	return Actions{CanApprove: true, CanReject: true, CanEdit: true}
}
