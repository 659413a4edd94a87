package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
)

type memStore struct {
	tasks  map[int64]entity.Task
	owner  map[int64]int64
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{tasks: map[int64]entity.Task{}, owner: map[int64]int64{}}
}

func (m *memStore) FindByID(_ context.Context, id int64) (*entity.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memStore) FindAllByUserID(_ context.Context, userID int64) ([]entity.Task, error) {
	out := []entity.Task{}
	for id, uid := range m.owner {
		if uid == userID {
			out = append(out, m.tasks[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateForUser(_ context.Context, t *entity.Task, userID int64) error {
	m.nextID++
	t.ID = m.nextID
	m.tasks[t.ID] = *t
	m.owner[t.ID] = userID
	return nil
}

func (m *memStore) Update(_ context.Context, t *entity.Task) error {
	if _, ok := m.tasks[t.ID]; !ok {
		return sql.ErrNoRows
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.tasks, id)
	delete(m.owner, id)
	return nil
}

func TestCreateForcesTodo(t *testing.T) {
	st := newMemStore()
	s := NewTaskService(st, nil)
	got, err := s.Create(context.Background(), &entity.Task{Title: "a", Status: entity.StatusDone}, 5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Status != entity.StatusTodo || st.owner[got.ID] != 5 {
		t.Fatalf("got %+v owner %d", got, st.owner[got.ID])
	}
}

func TestUpdateDefaultsStatus(t *testing.T) {
	st := newMemStore()
	s := NewTaskService(st, nil)
	ctx := context.Background()
	created, _ := s.Create(ctx, &entity.Task{Title: "a"}, 1)

	got, err := s.Update(ctx, &entity.Task{ID: created.ID, Title: "b"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Status != entity.StatusTodo || st.tasks[created.ID].Title != "b" {
		t.Fatalf("got %+v", got)
	}

	got, err = s.Update(ctx, &entity.Task{ID: created.ID, Title: "b", Status: entity.StatusDone})
	if err != nil || got.Status != entity.StatusDone {
		t.Fatalf("explicit status: %+v %v", got, err)
	}

	if _, err := s.Update(ctx, &entity.Task{ID: 99, Title: "x"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("unknown: %v", err)
	}
}

func TestGetDelete(t *testing.T) {
	s := NewTaskService(newMemStore(), nil)
	ctx := context.Background()
	created, _ := s.Create(ctx, &entity.Task{Title: "a"}, 1)
	s.Create(ctx, &entity.Task{Title: "b"}, 1)

	list, err := s.GetAllByUserID(ctx, 1)
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, created.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetByID after delete: %v", err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestDateTimeJSON(t *testing.T) {
	var req CreateRequest
	if err := json.Unmarshal([]byte(`{"title":"a","expirationDate":"2026-03-04 05:06"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)
	if e := req.Entity().ExpirationDate; e == nil || !e.Equal(want) {
		t.Fatalf("expiration = %v", e)
	}

	b, err := json.Marshal(ToResponse(&entity.Task{ID: 1, Title: "a", Status: entity.StatusTodo, ExpirationDate: &want}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	if out["expirationDate"] != "2026-03-04 05:06" {
		t.Fatalf("expirationDate = %v", out["expirationDate"])
	}

	if err := json.Unmarshal([]byte(`{"expirationDate":"04.03.2026"}`), &req); err == nil {
		t.Fatal("bad layout accepted")
	}
	var empty CreateRequest
	if err := json.Unmarshal([]byte(`{"title":"a","expirationDate":null}`), &empty); err != nil || empty.ExpirationDate != nil {
		t.Fatalf("null: %v %v", empty.ExpirationDate, err)
	}
}
