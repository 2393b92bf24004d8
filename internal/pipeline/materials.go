package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/Pavel4en/lms-api-app/internal/filter"
	"github.com/Pavel4en/lms-api-app/internal/lms"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

// MaterialRow is one section child — a material, task, quiz or SCORM
// package — flattened with its parent course and section.
type MaterialRow struct {
	CourseID          string
	CourseName        string
	CourseCreatedAt   string
	SectionName       string
	MaterialName      string
	FileName          string
	Category          string
	MaterialCreatedAt string
	Scorm             bool
}

// Materials runs the course→section→material export.
type Materials struct {
	Client   *lms.Client
	Reporter report.Reporter
	Pacing   time.Duration
}

// Run fetches all courses, applies opts, and flattens each course's
// detail view. Courses whose detail is missing or has no sections
// contribute zero rows.
func (p *Materials) Run(ctx context.Context, opts filter.Options) ([]MaterialRow, error) {
	report.Logf(p.Reporter, "Начало выгрузки разделов и материалов.")
	report.Progressf(p.Reporter, "Получение курсов для разделов и материалов...")
	started := time.Now()

	courses, err := p.Client.ListCourses(ctx)
	if err != nil && len(courses) == 0 {
		report.Logf(p.Reporter, "Ошибка при получении курсов: %v", err)
		return nil, err
	}
	report.Logf(p.Reporter, "Всего курсов получено: %d", len(courses))

	if !opts.IsZero() {
		if len(opts.CourseIDs) > 0 {
			report.Logf(p.Reporter, "Текущий фильтр courseIds: %s", strings.Join(opts.CourseIDs, ", "))
		}
		courses = filter.Apply(courses, opts)
		report.Logf(p.Reporter, "После фильтрации осталось курсов: %d", len(courses))
	}

	var rows []MaterialRow
	total := len(courses)
	for i, course := range courses {
		report.Progressf(p.Reporter, "Обрабатывается курс %d из %d (%d%% завершено). Прошло: %s.",
			i+1, total, percent(i+1, total), formatElapsed(time.Since(started)))
		report.Logf(p.Reporter, "Обработка курса ID %s ('%s')...", course.ID, course.Name)

		detail, err := p.Client.GetCourse(ctx, course.ID)
		if err != nil {
			report.Logf(p.Reporter, "Ошибка получения деталей курса %s: %v", course.ID, err)
		} else if len(detail.Sections) == 0 {
			report.Logf(p.Reporter, "Курс ID %s не содержит разделов.", course.ID)
		} else {
			rows = append(rows, p.flattenCourse(course, detail.Sections)...)
		}

		if err := pause(ctx, p.Pacing); err != nil {
			return rows, err
		}
	}

	report.Progressf(p.Reporter, "Выгрузка завершена.")
	report.Logf(p.Reporter, "Выгрузка завершена. Всего деталей: %d. Общее время: %s.",
		len(rows), formatElapsed(time.Since(started)))
	return rows, nil
}

// flattenCourse walks the four optional child collections of each
// section. The category label and scorm flag distinguish them; plain
// materials keep their own category field.
func (p *Materials) flattenCourse(course lms.Course, sections []lms.Section) []MaterialRow {
	base := MaterialRow{
		CourseID:        course.ID.String(),
		CourseName:      course.Name,
		CourseCreatedAt: course.CreatedAt,
	}

	var rows []MaterialRow
	for _, section := range sections {
		report.Logf(p.Reporter, "Обработка раздела ID %s ('%s')...", section.ID, section.Name)

		for _, m := range section.Materials {
			row := base
			row.SectionName = section.Name
			row.MaterialName = m.Name
			row.FileName = m.FileName
			row.Category = m.Category
			row.MaterialCreatedAt = m.CreatedAt
			rows = append(rows, row)
		}
		for _, task := range section.Tasks {
			row := base
			row.SectionName = section.Name
			row.MaterialName = task.Name
			row.Category = "task"
			row.MaterialCreatedAt = task.CreatedAt
			rows = append(rows, row)
		}
		for _, quiz := range section.Quizzes {
			row := base
			row.SectionName = section.Name
			row.MaterialName = quiz.Name
			row.Category = "quiz"
			row.MaterialCreatedAt = quiz.CreatedAt
			rows = append(rows, row)
		}
		for _, scorm := range section.ScormPackages {
			row := base
			row.SectionName = section.Name
			row.MaterialName = scorm.Name
			row.FileName = scorm.ResourceURL
			row.Category = "scorm"
			row.MaterialCreatedAt = scorm.CreatedAt
			row.Scorm = true
			rows = append(rows, row)
		}
	}
	return rows
}
