package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel4en/lms-api-app/internal/filter"
	"github.com/Pavel4en/lms-api-app/internal/httpx"
	"github.com/Pavel4en/lms-api-app/internal/lms"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

// lmsStub serves a small LMS: a one-page course list plus per-course
// sessions and per-session details.
type lmsStub struct {
	courses  string
	sessions map[string]string // courseID -> sessions page JSON
	details  map[string]string // courseID/sessionID -> detail JSON
}

func (s *lmsStub) start(t *testing.T) *lms.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("GET /courses", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, s.courses)
			return
		}
		fmt.Fprint(w, "[]")
	})
	mux.HandleFunc("GET /courses/{id}/course_sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "[]")
			return
		}
		if payload, ok := s.sessions[r.PathValue("id")]; ok {
			fmt.Fprint(w, payload)
			return
		}
		fmt.Fprint(w, "[]")
	})
	mux.HandleFunc("GET /courses/{id}/course_sessions/{sid}", func(w http.ResponseWriter, r *http.Request) {
		key := r.PathValue("id") + "/" + r.PathValue("sid")
		if payload, ok := s.details[key]; ok {
			fmt.Fprint(w, payload)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return lms.New(srv.URL, srv.URL+"/oauth/token", "id", "secret", lms.Options{
		Retry:    httpx.Disabled(),
		Reporter: report.Discard(),
		PageSize: 100,
	})
}

func TestSessionsOneRowPerSpeaker(t *testing.T) {
	stub := &lmsStub{
		courses: `[{"id":1,"name":"Курс А","created_at":"2024-02-01T00:00:00Z","types":[{"name":"Лекция"}]}]`,
		sessions: map[string]string{
			"1": `[{"id":10,"name":"Поток 1","course_id":1}]`,
		},
		details: map[string]string{
			"1/10": `{
				"participants":[
					{"id":100,"fullname":" Иванов Иван ","role_name":"Докладчик"},
					{"id":101,"fullname":"Петрова Анна","role_name":"докладчик"},
					{"id":102,"fullname":"Сидоров Пётр","role_name":"Слушатель"},
					{"id":103,"fullname":"Кузнецова Мария","role_name":"слушатель"}
				],
				"course":{"id":1,"owner_name":"Владелец В.","authors":[{"name":"Олег","last_name":"Орлов"}]}
			}`,
		},
	}

	p := &Sessions{Client: stub.start(t), Reporter: report.Discard()}
	rows, err := p.Run(context.Background(), filter.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 2, "one row per speaker")

	assert.Equal(t, "100", rows[0].UserID)
	assert.Equal(t, "Иванов Иван", rows[0].Fullname)
	assert.Equal(t, "101", rows[1].UserID)

	for _, row := range rows {
		assert.Equal(t, "1", row.CourseID)
		assert.Equal(t, "Курс А", row.CourseName)
		assert.Equal(t, "10", row.SessionID)
		assert.Equal(t, "Поток 1", row.SessionName)
		assert.Equal(t, 2, row.ListenersCount)
		assert.Equal(t, "Владелец В.", row.OwnerName)
		assert.Equal(t, "Орлов Олег", row.AuthorsNames)
		assert.Equal(t, "2024-02-01T00:00:00Z", row.CreatedAt)
		assert.Equal(t, "Лекция", row.Category)
	}
}

func TestSessionsListenerFallbackWithoutSpeakers(t *testing.T) {
	stub := &lmsStub{
		courses: `[{"id":1,"name":"Курс А"}]`,
		sessions: map[string]string{
			"1": `[{"id":10,"name":"Поток 1","course_id":1}]`,
		},
		details: map[string]string{
			// Roles that match neither label: everyone becomes a listener.
			"1/10": `{"participants":[
				{"id":100,"fullname":"А","role_name":"гость"},
				{"id":101,"fullname":"Б","role_name":"модератор"},
				{"id":102,"fullname":"В","role_name":""}
			]}`,
		},
	}

	p := &Sessions{Client: stub.start(t), Reporter: report.Discard()}
	rows, err := p.Run(context.Background(), filter.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1, "a session without speakers yields a single placeholder row")

	assert.Empty(t, rows[0].UserID)
	assert.Empty(t, rows[0].Fullname)
	assert.Equal(t, 3, rows[0].ListenersCount, "listener count falls back to total participants")
}

func TestSessionsZeroSessionSummaryRow(t *testing.T) {
	stub := &lmsStub{
		courses: `[{"id":1,"name":"Курс без сеансов","created_at":"2024-03-01T00:00:00Z"}]`,
	}

	p := &Sessions{Client: stub.start(t), Reporter: report.Discard()}
	rows, err := p.Run(context.Background(), filter.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "1", row.CourseID)
	assert.Empty(t, row.SessionID)
	assert.Empty(t, row.SessionName)
	assert.Empty(t, row.UserID)
	assert.Zero(t, row.ListenersCount)
	assert.Equal(t, Unknown, row.OwnerName)
	assert.Equal(t, Unknown, row.AuthorsNames)
	assert.Equal(t, Unknown, row.Category)
	assert.Equal(t, "2024-03-01T00:00:00Z", row.CreatedAt)
}

func TestSessionsDetailFailureDegradesToEmptyShape(t *testing.T) {
	stub := &lmsStub{
		courses: `[{"id":1,"name":"Курс А","types":[{"name":"Лекция"}]}]`,
		sessions: map[string]string{
			"1": `[{"id":10,"name":"Поток 1","course_id":1}]`,
		},
		// no detail entry: the stub serves 404
	}

	p := &Sessions{Client: stub.start(t), Reporter: report.Discard()}
	rows, err := p.Run(context.Background(), filter.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1, "the session still produces a row")

	assert.Equal(t, "10", rows[0].SessionID)
	assert.Zero(t, rows[0].ListenersCount)
	assert.Equal(t, Unknown, rows[0].OwnerName)
	assert.Equal(t, Unknown, rows[0].AuthorsNames)
}

func TestSessionsAppliesFilters(t *testing.T) {
	stub := &lmsStub{
		courses: `[
			{"id":1,"name":"Лекционный","types":[{"name":"лекция"}]},
			{"id":2,"name":"Семинарский","types":[{"name":"Семинар"}]}
		]`,
	}

	p := &Sessions{Client: stub.start(t), Reporter: report.Discard()}
	rows, err := p.Run(context.Background(), filter.Options{CourseTypes: []string{"Лекция"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1", rows[0].CourseID)
}

func TestSessionsBlankSessionNameDefaults(t *testing.T) {
	stub := &lmsStub{
		courses: `[{"id":1,"name":"Курс А"}]`,
		sessions: map[string]string{
			"1": `[{"id":10,"name":"","course_id":1}]`,
		},
		details: map[string]string{
			"1/10": `{"participants":[]}`,
		},
	}

	p := &Sessions{Client: stub.start(t), Reporter: report.Discard()}
	rows, err := p.Run(context.Background(), filter.Options{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Unknown, rows[0].SessionName)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0 ч 0 мин 5 сек", formatElapsed(5e9))
	assert.Equal(t, "1 ч 1 мин 1 сек", formatElapsed(3661e9))
}
