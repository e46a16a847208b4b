package category

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roundtable/service/internal/logging"
)

func TestRepository_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM categories ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(2, "Breakfast").AddRow(4, "Dessert"))

	list, err := NewRepository(mock).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Category{{ID: 2, Name: "Breakfast"}, {ID: 4, Name: "Dessert"}}, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name FROM categories WHERE id`).
		WithArgs(99).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}))

	_, err = NewRepository(mock).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubStore struct {
	list []Category
	err  error
}

func (s stubStore) List(context.Context) ([]Category, error) { return s.list, s.err }

func (s stubStore) GetByID(_ context.Context, id int) (*Category, error) {
	for _, c := range s.list {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func TestHandler_List(t *testing.T) {
	h := NewHandler(NewService(stubStore{list: []Category{{ID: 1, Name: "Soup"}}}), logging.Nop())
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"categories":[{"id":1,"name":"Soup"}]}}`, rec.Body.String())

	h = NewHandler(NewService(stubStore{err: errors.New("boom")}), logging.Nop())
	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
