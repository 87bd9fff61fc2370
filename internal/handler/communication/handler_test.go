package communication

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchdesk/admin-api/internal/dispatch"
	"github.com/churchdesk/admin-api/internal/middleware"
	"github.com/churchdesk/admin-api/internal/model"
	"github.com/churchdesk/admin-api/pkg/errors"
)

type fakeDispatcher struct {
	got        dispatch.Request
	result     *dispatch.Result
	err        error
	resumed    uuid.UUID
	audience   dispatch.Audience
	recipients []model.RecipientIdentity
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req dispatch.Request) (*dispatch.Result, error) {
	f.got = req
	return f.result, f.err
}

func (f *fakeDispatcher) Deliver(context.Context, uuid.UUID) (*dispatch.Result, error) {
	return f.result, f.err
}

func (f *fakeDispatcher) ResumePending(_ context.Context, id uuid.UUID) (*dispatch.Result, error) {
	f.resumed = id
	return f.result, f.err
}

func (f *fakeDispatcher) Recipients(_ context.Context, sel dispatch.Audience) ([]model.RecipientIdentity, error) {
	f.audience = sel
	return f.recipients, f.err
}

type fakeMessages struct {
	limit     int
	status    string
	detail    *model.MessageDetail
	err       error
	cancelled uuid.UUID
	deleted   uuid.UUID
}

func (f *fakeMessages) ListMessages(_ context.Context, status string, limit int) ([]*model.Message, error) {
	f.status, f.limit = status, limit
	return []*model.Message{}, f.err
}

func (f *fakeMessages) GetMessage(context.Context, uuid.UUID) (*model.MessageDetail, error) {
	return f.detail, f.err
}

func (f *fakeMessages) DeleteMessage(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

func (f *fakeMessages) CancelSchedule(_ context.Context, id uuid.UUID) error {
	f.cancelled = id
	return f.err
}

func (f *fakeMessages) Stats(context.Context) (*model.CommunicationStats, error) {
	return &model.CommunicationStats{MessagesPublished: 7}, f.err
}

func setup(t *testing.T, d *fakeDispatcher, m *fakeMessages) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators(middleware.DefaultValidationConfig()))

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	NewHandler(d, m).RegisterRoutes(r.Group("/api/v1/communication"))
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func validSend() map[string]interface{} {
	return map[string]interface{}{
		"title":             "Sunday service",
		"content":           "See you at 10",
		"delivery_channels": []string{"email", "sms"},
		"audience_type":     "all",
		"action":            "send",
	}
}

func TestSend(t *testing.T) {
	id := uuid.New()
	d := &fakeDispatcher{result: &dispatch.Result{
		MessageID:       id,
		TotalRecipients: 5,
		Status:          model.MessageStatusPublished,
		Stats:           model.DeliveryStats{Sent: 4, Failed: 1},
	}}
	r := setup(t, d, &fakeMessages{})

	w, body := do(r, http.MethodPost, "/api/v1/communication/send", validSend())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, id.String(), body["message_id"])
	assert.Equal(t, 5.0, body["total_recipients"])
	assert.Equal(t, "published", body["status"])
	stats := body["delivery_stats"].(map[string]interface{})
	assert.Equal(t, 4.0, stats["sent"])
	assert.Equal(t, 1.0, stats["failed"])

	assert.Equal(t, []model.Channel{model.ChannelEmail, model.ChannelSMS}, d.got.Channels)
	assert.Equal(t, dispatch.ActionSend, d.got.Action)
}

func TestSend_UnknownAudience(t *testing.T) {
	d := &fakeDispatcher{}
	r := setup(t, d, &fakeMessages{})
	req := validSend()
	req["audience_type"] = "everyone_in_town"

	w, body := do(r, http.MethodPost, "/api/v1/communication/send", req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "InvalidAudience", body["code"])
	assert.Empty(t, d.got.Title)
}

func TestSend_UnknownChannel(t *testing.T) {
	r := setup(t, &fakeDispatcher{}, &fakeMessages{})
	req := validSend()
	req["delivery_channels"] = []string{"fax"}

	w, body := do(r, http.MethodPost, "/api/v1/communication/send", req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", body["code"])
}

func TestSend_MalformedJSON(t *testing.T) {
	r := setup(t, &fakeDispatcher{}, &fakeMessages{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/communication/send", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidRequest")
}

func TestSend_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{errors.NoRecipients(), http.StatusUnprocessableEntity, "NoRecipients"},
		{errors.StoreUnavailable("message creation", assert.AnError), http.StatusServiceUnavailable, "StoreUnavailable"},
		{errors.InvalidRequest("title is required"), http.StatusBadRequest, "InvalidRequest"},
		{assert.AnError, http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := setup(t, &fakeDispatcher{err: tc.err}, &fakeMessages{})

			w, body := do(r, http.MethodPost, "/api/v1/communication/send", validSend())

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestListMessages(t *testing.T) {
	m := &fakeMessages{}
	r := setup(t, &fakeDispatcher{}, m)

	w, body := do(r, http.MethodGet, "/api/v1/communication/messages?status=published&limit=20", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "published", m.status)
	assert.Equal(t, 20, m.limit)

	w, _ = do(r, http.MethodGet, "/api/v1/communication/messages?limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessage(t *testing.T) {
	id := uuid.New()
	m := &fakeMessages{detail: &model.MessageDetail{Message: &model.Message{ID: id, Title: "Hello"}}}
	r := setup(t, &fakeDispatcher{}, m)

	w, body := do(r, http.MethodGet, "/api/v1/communication/messages/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hello", body["data"].(map[string]interface{})["title"])

	w, _ = do(r, http.MethodGet, "/api/v1/communication/messages/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	m.err = errors.NotFound("message", nil)
	w, body = do(r, http.MethodGet, "/api/v1/communication/messages/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", body["code"])
}

func TestDeleteResumeCancel(t *testing.T) {
	id := uuid.New()
	d := &fakeDispatcher{result: &dispatch.Result{MessageID: id, Status: model.MessageStatusPublished}}
	m := &fakeMessages{}
	r := setup(t, d, m)

	w, _ := do(r, http.MethodDelete, "/api/v1/communication/messages/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, m.deleted)

	w, body := do(r, http.MethodPost, "/api/v1/communication/messages/"+id.String()+"/resume", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, d.resumed)
	assert.Equal(t, "published", body["status"])

	w, _ = do(r, http.MethodDelete, "/api/v1/communication/scheduled/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, m.cancelled)
}

func TestStatsAndSMSInfo(t *testing.T) {
	r := setup(t, &fakeDispatcher{}, &fakeMessages{})

	w, body := do(r, http.MethodGet, "/api/v1/communication/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.0, body["data"].(map[string]interface{})["messages_published"])

	w, body = do(r, http.MethodGet, "/api/v1/communication/sms/info?text=hello", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := body["data"].(map[string]interface{})
	assert.Equal(t, 5.0, info["characters"])
	assert.Equal(t, 1.0, info["messages"])
}

func TestRecipients(t *testing.T) {
	d := &fakeDispatcher{recipients: []model.RecipientIdentity{
		{ID: 4, Type: model.RecipientTypeMember, FirstName: "Grace", LastName: "Otieno", Email: "grace@x.org"},
		{ID: 9, Type: model.RecipientTypeMember, FirstName: "Paul", Phone: "+254700000009"},
	}}
	r := setup(t, d, &fakeMessages{})

	w, body := do(r, http.MethodGet, "/api/v1/communication/recipients?audience_type=individual&member_ids=4,%209&group_id=3", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
	first := body["recipients"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Grace Otieno", first["name"])
	assert.Equal(t, "grace@x.org", first["email"])

	assert.Equal(t, "individual", d.audience.Type)
	assert.Equal(t, []int64{4, 9}, d.audience.MemberIDs)
	require.NotNil(t, d.audience.GroupID)
	assert.Equal(t, int64(3), *d.audience.GroupID)
}

func TestRecipients_Empty(t *testing.T) {
	r := setup(t, &fakeDispatcher{recipients: []model.RecipientIdentity{}}, &fakeMessages{})

	w, body := do(r, http.MethodGet, "/api/v1/communication/recipients?audience_type=ministry&audience_value=Choir", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["recipients"])
}

func TestRecipients_BadInput(t *testing.T) {
	d := &fakeDispatcher{}
	r := setup(t, d, &fakeMessages{})

	w, body := do(r, http.MethodGet, "/api/v1/communication/recipients?audience_type=individual&member_ids=4,x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", body["code"])

	w, _ = do(r, http.MethodGet, "/api/v1/communication/recipients?audience_type=custom_group&group_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d.err = errors.InvalidAudience("unknown audience type: martians")
	w, body = do(r, http.MethodGet, "/api/v1/communication/recipients?audience_type=martians", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidAudience", body["code"])
}
