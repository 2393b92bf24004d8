package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/Pavel4en/lms-api-app/internal/filter"
	"github.com/Pavel4en/lms-api-app/internal/lms"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

// Participant roles recognized in session details.
const (
	roleSpeaker  = "докладчик"
	roleListener = "слушатель"
)

// SessionRow is the denormalized Course × Session × Speaker record.
// One row per speaker; a session without speakers yields a single row
// with empty speaker fields; a course without sessions yields a single
// summary row with empty session fields.
type SessionRow struct {
	CourseID       string
	CourseName     string
	SessionID      string
	SessionName    string
	UserID         string
	Fullname       string
	ListenersCount int
	OwnerName      string
	AuthorsNames   string
	CreatedAt      string
	Category       string
}

// sessionEnrichment is the per-session detail breakdown. The zero
// value doubles as the "detail fetch failed" shape.
type sessionEnrichment struct {
	speakers       []lms.Participant
	listenersCount int
	ownerName      string
	authorsNames   string
}

// Sessions runs the full course→session→speaker export.
type Sessions struct {
	Client   *lms.Client
	Reporter report.Reporter

	// Pacing separates processed courses to throttle the remote API.
	Pacing time.Duration
}

// Run fetches all courses, applies opts and flattens every course into
// SessionRows. A course-list failure with partial results is logged and
// the partial list is processed; with no results it is fatal.
func (p *Sessions) Run(ctx context.Context, opts filter.Options) ([]SessionRow, error) {
	report.Logf(p.Reporter, "Начало полной выгрузки: курсы, сеансы и потоки.")
	report.Progressf(p.Reporter, "Получение курсов...")
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

	var rows []SessionRow
	total := len(courses)
	for i, course := range courses {
		report.Progressf(p.Reporter, "Обрабатывается курс %d из %d (%d%% завершено). Прошло: %s.",
			i+1, total, percent(i+1, total), formatElapsed(time.Since(started)))

		courseRows := p.processCourse(ctx, course)
		if len(courseRows) > 0 {
			rows = append(rows, courseRows...)
		} else {
			rows = append(rows, courseSummaryRow(course))
			report.Logf(p.Reporter, "Курс ID %s ('%s') не имеет сеансов.", course.ID, course.Name)
		}

		if err := pause(ctx, p.Pacing); err != nil {
			return rows, err
		}
	}

	report.Progressf(p.Reporter, "Выгрузка завершена.")
	report.Logf(p.Reporter, "Полная выгрузка завершена. Всего записей: %d. Общее время: %s.",
		len(rows), formatElapsed(time.Since(started)))
	return rows, nil
}

// processCourse flattens one course's sessions. Session-list and
// detail failures degrade to partial/empty data, never abort the run.
func (p *Sessions) processCourse(ctx context.Context, course lms.Course) []SessionRow {
	sessions, _ := p.Client.ListCourseSessions(ctx, course.ID)
	report.Logf(p.Reporter, "Для курса %s получено сеансов: %d", course.ID, len(sessions))

	var rows []SessionRow
	for _, session := range sessions {
		sessionName := session.Name
		if sessionName == "" {
			sessionName = Unknown
		}
		enr := p.enrichSession(ctx, course.ID, session.ID)
		rows = append(rows, flattenSession(course, session.ID.String(), sessionName, enr)...)
	}
	return rows
}

// enrichSession fetches the session detail and classifies its
// participants. Any failure yields the empty enrichment shape.
func (p *Sessions) enrichSession(ctx context.Context, courseID, sessionID lms.ID) sessionEnrichment {
	detail, err := p.Client.GetSessionDetail(ctx, courseID, sessionID)
	if err != nil {
		report.Logf(p.Reporter, "Ошибка получения деталей сеанса (Course ID: %s, Session ID: %s): %v",
			courseID, sessionID, err)
		return sessionEnrichment{}
	}

	var enr sessionEnrichment
	for _, part := range detail.Participants {
		switch strings.TrimSpace(strings.ToLower(part.RoleName)) {
		case roleSpeaker:
			enr.speakers = append(enr.speakers, part)
		case roleListener:
			enr.listenersCount++
		}
	}

	// Without any identified speaker, every participant counts as a listener.
	if len(detail.Participants) > 0 && len(enr.speakers) == 0 {
		enr.listenersCount = len(detail.Participants)
	}
	if len(detail.Participants) > 0 && enr.listenersCount == 0 {
		report.Logf(p.Reporter, "Внимание: В сеансе %s курса %s обнаружено %d участников, но нет слушателей. Проверьте роли.",
			sessionID, courseID, len(detail.Participants))
	}

	if detail.Course != nil {
		enr.ownerName = strings.TrimSpace(detail.Course.OwnerName)
		enr.authorsNames = detail.Course.AuthorNames()
	}
	return enr
}

// flattenSession emits one row per speaker, or a single row with empty
// speaker fields when the session has none.
func flattenSession(course lms.Course, sessionID, sessionName string, enr sessionEnrichment) []SessionRow {
	base := SessionRow{
		CourseID:       course.ID.String(),
		CourseName:     course.Name,
		SessionID:      sessionID,
		SessionName:    sessionName,
		ListenersCount: enr.listenersCount,
		OwnerName:      unknownIfEmpty(enr.ownerName),
		AuthorsNames:   unknownIfEmpty(enr.authorsNames),
		CreatedAt:      course.CreatedAt,
		Category:       unknownIfEmpty(course.TypeNames()),
	}

	if len(enr.speakers) == 0 {
		return []SessionRow{base}
	}

	rows := make([]SessionRow, 0, len(enr.speakers))
	for _, speaker := range enr.speakers {
		row := base
		row.UserID = speaker.ID.String()
		row.Fullname = strings.TrimSpace(speaker.Fullname)
		rows = append(rows, row)
	}
	return rows
}

// courseSummaryRow stands in for a course that has no sessions at all.
func courseSummaryRow(course lms.Course) SessionRow {
	return SessionRow{
		CourseID:     course.ID.String(),
		CourseName:   course.Name,
		OwnerName:    unknownIfEmpty(strings.TrimSpace(course.OwnerName)),
		AuthorsNames: unknownIfEmpty(course.AuthorNames()),
		CreatedAt:    course.CreatedAt,
		Category:     unknownIfEmpty(course.TypeNames()),
	}
}
