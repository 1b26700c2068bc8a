package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"trainhub/console/config"
	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoDrafts     = errors.New("所选月份暂无草稿")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出范围与列表页一致，同样先经过权限判定
//   - 月度导出为 Excel (.xlsx)，末尾附汇总行
//   - 日历导出为 iCalendar (.ics)，供外部日历订阅查看
type ExportService interface {
	// ExportMonth 导出某月草稿为 Excel
	ExportMonth(ctx context.Context, p workflow.Principal, branchID *int64, year int, month time.Month) (*bytes.Buffer, string, error)
	// ExportCalendar 导出当前范围草稿为 ICS
	ExportCalendar(ctx context.Context, p workflow.Principal, branchID *int64) ([]byte, string, error)
}

type exportService struct {
	cfg    *config.DraftConfig
	loader *draftLoader
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.DraftConfig, loader *draftLoader, logger *zap.Logger) ExportService {
	return &exportService{cfg: cfg, loader: loader, logger: logger, now: time.Now}
}

func (s *exportService) load(ctx context.Context, p workflow.Principal, branchID *int64) (*loadResult, error) {
	access := workflow.DraftApprovalAccess(p)
	scope, err := workflow.ResolveScope(access, branchID)
	if err != nil {
		return nil, err
	}
	return s.loader.Load(ctx, scope)
}

var statusNames = map[upstream.DraftStatus]string{
	upstream.StatusPending:  "待审批",
	upstream.StatusApproved: "已审批",
	upstream.StatusRejected: "已拒绝",
}

var locationNames = map[upstream.Location]string{
	upstream.LocationInternal: "校内",
	upstream.LocationExternal: "校外",
}

// ═══════════════════════════════════════════════════════════
// ExportMonth — 月度 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行标题，第 2 行表头
//   - 每条草稿一行，保持列表页顺序
//   - 末行汇总：总课时、已审批课时、已审批金额

func (s *exportService) ExportMonth(ctx context.Context, p workflow.Principal, branchID *int64, year int, month time.Month) (*bytes.Buffer, string, error) {
	loaded, err := s.load(ctx, p, branchID)
	if err != nil {
		return nil, "", err
	}

	groups := workflow.GroupByMonth(loaded.Drafts, s.now(), s.cfg.Location())
	group, ok := workflow.FindGroup(groups, year, month)
	if !ok {
		return nil, "", ErrExportNoDrafts
	}

	branchNames := make(map[int64]string, len(loaded.Branches))
	for _, b := range loaded.Branches {
		branchNames[b.ID] = b.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := group.Label
	idx, err := f.NewSheet(sheet)
	if err != nil {
		s.logger.Error("创建工作表失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"分校", "上课日期", "教师", "学员", "时间", "课时", "时长说明", "状态", "合同编号", "课时费", "地点", "金额", "拒绝原因"}
	widths := []float64{14, 12, 12, 12, 14, 8, 14, 10, 16, 10, 8, 12, 24}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s 课时草稿", group.Label))
	f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	row := 3
	for _, d := range group.Drafts {
		amount := ""
		rate := ""
		if d.HourlyRate.Valid {
			rate = d.HourlyRate.Decimal.String()
		}
		if a := amountOf(d); !a.IsZero() {
			amount = a.StringFixed(2)
		}
		values := []interface{}{
			branchName(branchNames, d.BranchID),
			d.SessionDate,
			d.TeacherName,
			d.StudentName,
			timeRange(d),
			d.DurationHours.InexactFloat64(),
			d.DurationText,
			statusNames[d.Status],
			d.ContractNumber,
			rate,
			locationNames[d.Location],
			amount,
			d.RejectionReason,
		}
		for i, v := range values {
			f.SetCellValue(sheet, cell(colName(i), row), v)
		}
		row++
	}

	// 汇总行
	sum := group.Summary
	f.SetCellValue(sheet, cell("A", row), "合计")
	f.SetCellValue(sheet, cell("B", row), fmt.Sprintf("共 %d 条（待审批 %d / 已审批 %d / 已拒绝 %d）", sum.Total, sum.Pending, sum.Approved, sum.Rejected))
	f.MergeCell(sheet, cell("B", row), cell("E", row))
	f.SetCellValue(sheet, cell("F", row), sum.TotalHours.InexactFloat64())
	f.SetCellValue(sheet, cell("G", row), "已审批 "+sum.ApprovedHours.String()+" 课时")
	f.SetCellValue(sheet, cell("L", row), sum.ApprovedAmount.StringFixed(2))

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("课时草稿_%s.xlsx", workflow.MonthKey(year, month))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func branchName(names map[int64]string, id int64) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("#%d", id)
}

func timeRange(d upstream.SessionDraft) string {
	switch {
	case d.StartTime != nil && d.EndTime != nil:
		return *d.StartTime + "-" + *d.EndTime
	case d.StartTime != nil:
		return *d.StartTime
	default:
		return ""
	}
}

// amountOf 已审批草稿的金额，其余为零
func amountOf(d upstream.SessionDraft) decimal.Decimal {
	if d.Status != upstream.StatusApproved || !d.HourlyRate.Valid {
		return decimal.Zero
	}
	return d.DurationHours.Mul(d.HourlyRate.Decimal)
}
