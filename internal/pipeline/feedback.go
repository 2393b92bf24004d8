package pipeline

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Pavel4en/lms-api-app/internal/lms"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

// FeedbackSettings configures the survey form and the published
// section/material.
type FeedbackSettings struct {
	FormURL           string
	CourseNameFieldID string
	CourseIDFieldID   string
	SectionName       string
	SectionIconURL    string
	MaterialName      string
	MaterialText      string
}

// FeedbackResult records the outcome of one input row.
type FeedbackResult struct {
	CourseID      string
	CourseName    string
	SectionID     string
	MaterialAdded bool
	Link          string
}

// Feedback publishes survey links back into the LMS: one section per
// course, one hyperlink material per section.
type Feedback struct {
	Client   *lms.Client
	Reporter report.Reporter
	Settings FeedbackSettings

	// Delay separates records to throttle the remote API.
	Delay time.Duration
}

// PrefilledURL builds a survey URL whose form fields are pre-populated
// with the course name and id.
func PrefilledURL(baseURL, courseName, courseID, nameFieldID, idFieldID string) string {
	if baseURL == "" {
		return ""
	}
	params := url.Values{}
	params.Set(nameFieldID, courseName)
	params.Set(idFieldID, courseID)
	return baseURL + "?" + params.Encode()
}

// Run processes input rows (header-keyed cells from a workbook). Rows
// missing the course id, course name or a usable link are skipped with
// a logged reason. Failures publishing one row never stop the next.
func (p *Feedback) Run(ctx context.Context, rows []map[string]string) ([]FeedbackResult, error) {
	report.Logf(p.Reporter, "Начало создания разделов и материалов для обратной связи...")
	started := time.Now()

	var results []FeedbackResult
	total := len(rows)
	for i, row := range rows {
		report.Logf(p.Reporter, "Обработка записи %d из %d...", i+1, total)

		courseID := strings.TrimSpace(row["course_id"])
		courseName := row["Название курса в ЛМС"]
		if courseName == "" {
			courseName = row["course_name"]
		}
		link := PrefilledURL(p.Settings.FormURL, courseName, courseID,
			p.Settings.CourseNameFieldID, p.Settings.CourseIDFieldID)

		if courseID == "" || courseName == "" || link == "" {
			report.Logf(p.Reporter, "Пропуск записи %d: недостаточно данных (course_id: %s, courseName: %s)",
				i+1, courseID, courseName)
			continue
		}

		sectionID, err := p.Client.CreateSection(ctx, lms.ID(courseID), p.Settings.SectionName, p.Settings.SectionIconURL)
		if err != nil || sectionID.IsZero() {
			report.Logf(p.Reporter, "Запись %d: Не удалось создать раздел для курса ID %s: %v", i+1, courseID, err)
			continue
		}
		report.Logf(p.Reporter, "Создан раздел \"%s\" для курса ID %s.", p.Settings.SectionName, courseID)

		added := true
		if err := p.Client.AddMaterial(ctx, sectionID, p.Settings.MaterialName, link, p.Settings.MaterialText); err != nil {
			report.Logf(p.Reporter, "Ошибка при добавлении материала \"%s\" в раздел ID %s: %v",
				p.Settings.MaterialName, sectionID, err)
			added = false
		}
		report.Logf(p.Reporter, "Запись %d: Раздел ID %s создан. Материал %s.",
			i+1, sectionID, addedWord(added))

		results = append(results, FeedbackResult{
			CourseID:      courseID,
			CourseName:    courseName,
			SectionID:     sectionID.String(),
			MaterialAdded: added,
			Link:          link,
		})

		if err := pause(ctx, p.Delay); err != nil {
			return results, err
		}
		report.Progressf(p.Reporter, "Обработано %d из %d. Прошло: %s.",
			i+1, total, formatElapsed(time.Since(started)))
	}

	report.Logf(p.Reporter, "Создание разделов и материалов '%s' завершено.", p.Settings.SectionName)
	return results, nil
}

func addedWord(ok bool) string {
	if ok {
		return "добавлен"
	}
	return "не добавлен"
}
