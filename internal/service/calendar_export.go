package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trainhub/console/internal/upstream"
	"trainhub/console/internal/workflow"
)

// ── ICS 导出 ──────────────────────────────────────────────
//
// 有开始、结束时间的草稿导出为定时事件，否则按上课日期导出全天事件。
// UID 由草稿 ID 派生，重复导出时外部日历可按 UID 覆盖更新。
// 状态映射：待审批 TENTATIVE，已审批 CONFIRMED，已拒绝 CANCELLED。
// ─────────────────────────────────────────────────────────────

const (
	calendarProductID = "-//trainhub//console//CN"
	dateLayoutICS     = "2006-01-02"
)

var decimalSixty = decimal.NewFromInt(60)

var draftUIDNamespace = uuid.MustParse("6f1c3a52-8a1e-4d0b-9d3e-2b7f51c0a9e4")

var eventStatus = map[upstream.DraftStatus]ics.ObjectStatus{
	upstream.StatusPending:  ics.ObjectStatusTentative,
	upstream.StatusApproved: ics.ObjectStatusConfirmed,
	upstream.StatusRejected: ics.ObjectStatusCancelled,
}

func (s *exportService) ExportCalendar(ctx context.Context, p workflow.Principal, branchID *int64) ([]byte, string, error) {
	loaded, err := s.load(ctx, p, branchID)
	if err != nil {
		return nil, "", err
	}

	loc := s.cfg.Location()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName("课时草稿")
	cal.SetXWRTimezone(loc.String())

	stamp := s.now().UTC()
	for _, d := range loaded.Drafts {
		if err := addDraftEvent(cal, d, loc, stamp); err != nil {
			s.logger.Debug("草稿日期无效，跳过日历导出",
				zap.Int64("draft_id", d.ID),
				zap.String("session_date", d.SessionDate),
			)
			continue
		}
	}

	filename := "drafts.ics"
	if branchID != nil {
		filename = fmt.Sprintf("drafts_branch_%d.ics", *branchID)
	}
	return []byte(cal.Serialize()), filename, nil
}

// DraftEventUID 草稿对应的日历事件 UID
func DraftEventUID(draftID int64) string {
	return uuid.NewSHA1(draftUIDNamespace, []byte(fmt.Sprintf("draft-%d", draftID))).String() + "@trainhub"
}

func addDraftEvent(cal *ics.Calendar, d upstream.SessionDraft, loc *time.Location, stamp time.Time) error {
	day, err := time.ParseInLocation(dateLayoutICS, d.SessionDate, loc)
	if err != nil {
		return err
	}

	ev := cal.AddEvent(DraftEventUID(d.ID))
	ev.SetDtStampTime(stamp)
	ev.SetSummary(fmt.Sprintf("%s · %s", d.TeacherName, d.StudentName))
	ev.SetDescription(eventDescription(d))
	if st, ok := eventStatus[d.Status]; ok {
		ev.SetStatus(st)
	}
	if d.Location != "" {
		ev.SetLocation(locationNames[d.Location])
	}

	start, end, timed := eventTimes(d, loc)
	if timed {
		ev.SetStartAt(start)
		ev.SetEndAt(end)
	} else {
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}
	return nil
}

// eventTimes 解析开始、结束时间；仅有开始时间时按课时推算结束
func eventTimes(d upstream.SessionDraft, loc *time.Location) (time.Time, time.Time, bool) {
	if d.StartTime == nil {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.ParseInLocation(dateLayoutICS+" 15:04", d.SessionDate+" "+*d.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if d.EndTime != nil {
		if end, err := time.ParseInLocation(dateLayoutICS+" 15:04", d.SessionDate+" "+*d.EndTime, loc); err == nil && end.After(start) {
			return start, end, true
		}
	}
	minutes := d.DurationHours.Mul(decimalSixty).IntPart()
	if minutes <= 0 {
		minutes = 60
	}
	return start, start.Add(time.Duration(minutes) * time.Minute), true
}

func eventDescription(d upstream.SessionDraft) string {
	lines := []string{
		"状态：" + statusNames[d.Status],
		"课时：" + d.DurationHours.String() + "（" + d.DurationText + "）",
		fmt.Sprintf("分校：#%d", d.BranchID),
	}
	if d.ContractNumber != "" {
		lines = append(lines, "合同编号："+d.ContractNumber)
	}
	if d.RejectionReason != "" {
		lines = append(lines, "拒绝原因："+d.RejectionReason)
	}
	return strings.Join(lines, "\n")
}
