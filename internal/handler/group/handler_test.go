package group

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchdesk/admin-api/internal/middleware"
	"github.com/churchdesk/admin-api/internal/model"
	groupService "github.com/churchdesk/admin-api/internal/service/group"
	"github.com/churchdesk/admin-api/pkg/errors"
)

type fakeGroups struct {
	created groupService.CreateRequest
	deleted int64
	err     error
}

func (f *fakeGroups) ListGroups(context.Context) ([]*model.MessageGroup, error) {
	return []*model.MessageGroup{{
		ID:          1,
		Name:        "Choir",
		Type:        model.GroupTypeStatic,
		MemberCount: 1,
		Members:     []model.RecipientIdentity{{ID: 7, Type: model.RecipientTypeMember, FirstName: "Ann"}},
	}}, f.err
}

func (f *fakeGroups) CreateGroup(_ context.Context, req groupService.CreateRequest) (*model.MessageGroup, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.MessageGroup{ID: 12, Name: req.Name, Type: model.GroupTypeStatic, MemberCount: len(req.MemberIDs)}, nil
}

func (f *fakeGroups) DeleteGroup(_ context.Context, id int64) error {
	f.deleted = id
	return f.err
}

func setup(svc *fakeGroups) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	NewHandler(svc).RegisterRoutes(r.Group("/communication"))
	return r
}

func do(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestListGroups(t *testing.T) {
	r := setup(&fakeGroups{})

	w, body := do(r, http.MethodGet, "/communication/groups", "")

	require.Equal(t, http.StatusOK, w.Code)
	group := body["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Choir", group["group_name"])
	assert.Equal(t, float64(1), group["member_count"])
	assert.Len(t, group["members"], 1)
}

func TestCreateGroup(t *testing.T) {
	svc := &fakeGroups{}
	r := setup(svc)

	w, body := do(r, http.MethodPost, "/communication/groups",
		`{"group_name":"Ushers","description":"Sunday ushers","member_ids":[4,5]}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(12), body["data"].(map[string]interface{})["group_id"])
	assert.Equal(t, "Ushers", svc.created.Name)
	assert.Equal(t, []int64{4, 5}, svc.created.MemberIDs)
}

func TestCreateGroup_BadBody(t *testing.T) {
	r := setup(&fakeGroups{})

	for _, body := range []string{`{}`, `{"group_name":"Ushers","group_type":"smart"}`, `not json`} {
		w, out := do(r, http.MethodPost, "/communication/groups", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "InvalidRequest", out["code"], body)
	}
}

func TestDeleteGroup(t *testing.T) {
	cases := []struct {
		path   string
		status int
		id     int64
	}{
		{"/communication/groups/9", http.StatusOK, 9},
		{"/communication/groups?group_id=11", http.StatusOK, 11},
		{"/communication/groups", http.StatusBadRequest, 0},
		{"/communication/groups/abc", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			svc := &fakeGroups{}
			w, _ := do(setup(svc), http.MethodDelete, tc.path, "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.id, svc.deleted)
		})
	}
}

func TestDeleteGroup_NotFound(t *testing.T) {
	svc := &fakeGroups{err: errors.NotFound("message group", fmt.Errorf("missing"))}

	w, body := do(setup(svc), http.MethodDelete, "/communication/groups/9", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["code"])
}
