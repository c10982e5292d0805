package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/repository"
	"github.com/anvarDev14/davomatoriental/internal/stats"
)

// store is the slice of the repository the export reads.
type store interface {
	GetGroup(ctx context.Context, id int64) (model.Group, error)
	ListGroupStudents(ctx context.Context, groupID int64) ([]repository.GroupStudent, error)
	ListLessonsForReport(ctx context.Context, groupID int64, from, to *time.Time) ([]repository.ReportLesson, error)
	ListMarksForReport(ctx context.Context, groupID int64, from, to *time.Time) ([]repository.ReportMark, error)
}

type Builder struct {
	store store
}

func NewBuilder(store store) *Builder {
	return &Builder{store: store}
}

var statusCells = map[model.AttendanceStatus]string{
	model.AttendancePresent: "+",
	model.AttendanceLate:    "L",
	model.AttendanceAbsent:  "-",
	model.AttendanceExcused: "E",
}

// BuildGroupSheet renders the group's attendance grid as an xlsx file:
// one row per student, one column per lesson, a mark symbol in each
// cell and an attendance percentage at the end. Unmarked cells on held
// lessons render as "-".
func (b *Builder) BuildGroupSheet(ctx context.Context, groupID int64, from, to *time.Time) ([]byte, string, error) {
	group, err := b.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, "", err
	}
	students, err := b.store.ListGroupStudents(ctx, groupID)
	if err != nil {
		return nil, "", err
	}
	lessons, err := b.store.ListLessonsForReport(ctx, groupID, from, to)
	if err != nil {
		return nil, "", err
	}
	marks, err := b.store.ListMarksForReport(ctx, groupID, from, to)
	if err != nil {
		return nil, "", err
	}

	grid := make(map[int64]map[int64]model.AttendanceStatus, len(students))
	for _, m := range marks {
		if grid[m.StudentID] == nil {
			grid[m.StudentID] = make(map[int64]model.AttendanceStatus)
		}
		grid[m.StudentID][m.LessonID] = m.Status
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attendance"
	f.SetSheetName(f.GetSheetName(0), sheet)

	setCell := func(col, row int, value any) {
		name, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, name, value)
	}

	setCell(1, 1, "#")
	setCell(2, 1, "Student")
	for i, l := range lessons {
		setCell(3+i, 1, fmt.Sprintf("%s %s", l.Date.Format("02.01"), l.SubjectName))
	}
	setCell(3+len(lessons), 1, "Attended")
	setCell(4+len(lessons), 1, "%")

	for rowIdx, st := range students {
		row := rowIdx + 2
		setCell(1, row, rowIdx+1)
		setCell(2, row, st.FullName)

		attended := 0
		for colIdx, l := range lessons {
			status, marked := grid[st.StudentID][l.LessonID]
			cell := "-"
			if marked {
				cell = statusCells[status]
				if status == model.AttendancePresent || status == model.AttendanceLate {
					attended++
				}
			}
			setCell(3+colIdx, row, cell)
		}
		setCell(3+len(lessons), row, attended)
		setCell(4+len(lessons), row, stats.Percentage(attended, len(lessons)))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("attendance_%s_%s.xlsx", group.Name, time.Now().Format("2006-01-02"))
	return buf.Bytes(), filename, nil
}
