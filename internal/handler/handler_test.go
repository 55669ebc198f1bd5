package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-eventos/internal/config"
	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/handler"
	"agenda-eventos/internal/middleware"
	"agenda-eventos/internal/pkg/i18n"
	"agenda-eventos/internal/realtime"
	"agenda-eventos/internal/service"
	"agenda-eventos/internal/testutil"
	"agenda-eventos/internal/testutil/memstore"
)

const secret = "handler-secret"

type fixture struct {
	app       *fiber.App
	store     *memstore.Store
	organizer domain.User
	guest     domain.User
	supply    domain.User
	event     domain.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := i18n.NewCatalog("es")
	require.NoError(t, catalog.Load(filepath.Join("..", "..", "locales")))

	cfg := &config.Config{
		DefaultLocale:    "en",
		RefreshDelay:     time.Millisecond,
		CleanupBatchSize: 5,
	}

	store := memstore.New()
	broker := realtime.NewLocalBroker()
	store.SetPublisher(broker)

	repos := store.Repositories()
	services := service.NewServices(repos, broker, nil, catalog, cfg, testutil.DiscardLogger())

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	handler.SetupRoutes(app, handler.NewHandlers(services), middleware.AuthRequired(secret, repos.User))

	organizer := store.PutUser(domain.User{Email: "org@example.com", FullName: "Ana Org", Role: string(domain.RoleMember)})
	guest := store.PutUser(domain.User{Email: "guest@example.com", FullName: "Luis Guest", Role: string(domain.RoleMember)})
	supply := store.PutUser(domain.User{Email: "supply@example.com", FullName: "Sara Supply", Role: string(domain.RoleSupply)})
	event := store.PutEvent(domain.Event{
		Title:     "Feria",
		Category:  "cultural",
		StartAt:   time.Now().Add(48 * time.Hour),
		CreatedBy: organizer.ID,
	})

	return &fixture{app: app, store: store, organizer: organizer, guest: guest, supply: supply, event: event}
}

func (f *fixture) do(t *testing.T, user domain.User, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := middleware.IssueToken(secret, &user, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *fixture) itemRequest() domain.Request {
	return f.store.PutRequest(domain.Request{
		Kind:        domain.RequestItem,
		EventID:     f.event.ID,
		RequestedBy: f.organizer.ID,
		Sector:      string(domain.RoleSupply),
		ItemName:    "chairs",
		Quantity:    40,
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNotificationHandler_List(t *testing.T) {
	f := newFixture(t)
	req := f.itemRequest()
	f.store.PutNotification(domain.Notification{UserID: f.supply.ID, Type: domain.NotifSystem, Title: "hello"})

	resp := f.do(t, f.supply, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	feed := decode[domain.Feed](t, resp)
	assert.Equal(t, 2, feed.Badge)
	require.Len(t, feed.Entries, 2)

	keys := []string{feed.Entries[0].Key, feed.Entries[1].Key}
	assert.Contains(t, keys, "req_"+req.ID.String())

	t.Run("Badge", func(t *testing.T) {
		resp := f.do(t, f.supply, http.MethodGet, "/api/v1/notifications/badge", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), decode[map[string]any](t, resp)["count"])
	})

	t.Run("OtherRoleSeesNoVirtual", func(t *testing.T) {
		resp := f.do(t, f.guest, http.MethodGet, "/api/v1/notifications", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Empty(t, decode[domain.Feed](t, resp).Entries)
	})
}

func TestNotificationHandler_Decide(t *testing.T) {
	t.Run("ApprovesVirtualItemRequest", func(t *testing.T) {
		f := newFixture(t)
		req := f.itemRequest()

		resp := f.do(t, f.supply, http.MethodPost, "/api/v1/notifications/req_"+req.ID.String()+"/decision",
			domain.DecisionInput{Action: domain.ActionApproved})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		stored, ok := f.store.Request(req.ID)
		require.True(t, ok)
		assert.Equal(t, domain.RequestApproved, stored.Status)

		var toRequester int
		for _, n := range f.store.Notifications() {
			if n.UserID == f.organizer.ID && n.Type == domain.NotifDecisionResult {
				toRequester++
			}
		}
		assert.Equal(t, 1, toRequester)
	})

	t.Run("InvalidAction", func(t *testing.T) {
		f := newFixture(t)
		req := f.itemRequest()

		resp := f.do(t, f.supply, http.MethodPost, "/api/v1/notifications/req_"+req.ID.String()+"/decision",
			map[string]string{"action": "maybe"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ReviewerOfAnotherSector", func(t *testing.T) {
		f := newFixture(t)
		req := f.itemRequest()

		resp := f.do(t, f.guest, http.MethodPost, "/api/v1/notifications/req_"+req.ID.String()+"/decision",
			domain.DecisionInput{Action: domain.ActionApproved})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("AlreadyDecided", func(t *testing.T) {
		f := newFixture(t)
		req := f.itemRequest()
		path := "/api/v1/notifications/req_" + req.ID.String() + "/decision"

		resp := f.do(t, f.supply, http.MethodPost, path, domain.DecisionInput{Action: domain.ActionRejected})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = f.do(t, f.supply, http.MethodPost, path, domain.DecisionInput{Action: domain.ActionApproved})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})
}

func TestNotificationHandler_MarkAsRead(t *testing.T) {
	f := newFixture(t)
	notif := f.store.PutNotification(domain.Notification{UserID: f.guest.ID, Type: domain.NotifSystem, Title: "hello"})

	t.Run("Persisted", func(t *testing.T) {
		resp := f.do(t, f.guest, http.MethodPatch, "/api/v1/notifications/"+notif.ID.String()+"/read", nil)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

		stored, _ := f.store.Notification(notif.ID)
		assert.True(t, stored.Read)
	})

	t.Run("OtherUser", func(t *testing.T) {
		resp := f.do(t, f.supply, http.MethodPatch, "/api/v1/notifications/"+notif.ID.String()+"/read", nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("Virtual", func(t *testing.T) {
		req := f.itemRequest()
		resp := f.do(t, f.supply, http.MethodPatch, "/api/v1/notifications/req_"+req.ID.String()+"/read", nil)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("MalformedKey", func(t *testing.T) {
		resp := f.do(t, f.guest, http.MethodPatch, "/api/v1/notifications/not-a-key/read", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestNotificationHandler_Delete(t *testing.T) {
	f := newFixture(t)

	t.Run("PlainNotification", func(t *testing.T) {
		notif := f.store.PutNotification(domain.Notification{UserID: f.guest.ID, Type: domain.NotifSystem, Read: true})

		resp := f.do(t, f.guest, http.MethodDelete, "/api/v1/notifications/"+notif.ID.String(), nil)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

		_, ok := f.store.Notification(notif.ID)
		assert.False(t, ok)
	})

	t.Run("RequestForUpcomingEventIsKept", func(t *testing.T) {
		req := f.itemRequest()
		notif := f.store.PutNotification(domain.Notification{
			UserID:         f.supply.ID,
			Type:           domain.NotifItemRequest,
			RelatedRequest: &req.ID,
			InviteStatus:   domain.DecisionPending,
		})

		resp := f.do(t, f.supply, http.MethodDelete, "/api/v1/notifications/"+notif.ID.String(), nil)
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

		_, ok := f.store.Notification(notif.ID)
		assert.True(t, ok)
	})

	t.Run("AlreadyGone", func(t *testing.T) {
		resp := f.do(t, f.guest, http.MethodDelete, "/api/v1/notifications/"+uuid.NewString(), nil)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})
}

func TestNotificationHandler_Create(t *testing.T) {
	f := newFixture(t)
	input := domain.CreateNotificationInput{
		UserID:  f.guest.ID,
		Type:    domain.NotifInvite,
		Title:   "Invitation",
		Message: "Join us",
		EventID: &f.event.ID,
	}

	first := f.do(t, f.organizer, http.MethodPost, "/api/v1/notifications", input)
	require.Equal(t, fiber.StatusCreated, first.StatusCode)
	second := f.do(t, f.organizer, http.MethodPost, "/api/v1/notifications", input)
	require.Equal(t, fiber.StatusCreated, second.StatusCode)

	a := decode[domain.Notification](t, first)
	b := decode[domain.Notification](t, second)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, f.store.Notifications(), 1)
}

func TestNotificationHandler_ClearSafe(t *testing.T) {
	f := newFixture(t)
	f.store.PutNotification(domain.Notification{UserID: f.guest.ID, Type: domain.NotifSystem, Read: true})

	t.Run("AllRequiresAdmin", func(t *testing.T) {
		resp := f.do(t, f.guest, http.MethodPost, "/api/v1/notifications/clear_safe?all=true", nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("Own", func(t *testing.T) {
		resp := f.do(t, f.guest, http.MethodPost, "/api/v1/notifications/clear_safe", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), decode[map[string]any](t, resp)["deleted"])
		assert.Empty(t, f.store.Notifications())
	})
}

func TestEventHandler_Delete(t *testing.T) {
	t.Run("Creator", func(t *testing.T) {
		f := newFixture(t)
		f.event.Participants = domain.UserIDs{f.guest.ID}
		f.store.PutEvent(f.event)
		f.store.PutNotification(domain.Notification{UserID: f.guest.ID, Type: domain.NotifInvite, EventID: &f.event.ID})

		resp := f.do(t, f.organizer, http.MethodDelete, "/api/v1/events/"+f.event.ID.String(), map[string]string{"reason": "rain"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		_, ok := f.store.Event(f.event.ID)
		assert.False(t, ok)

		result := decode[map[string]any](t, resp)
		assert.Equal(t, float64(1), result["notified"])
	})

	t.Run("NotCreator", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, f.guest, http.MethodDelete, "/api/v1/events/"+f.event.ID.String(), nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		_, ok := f.store.Event(f.event.ID)
		assert.True(t, ok)
	})

	t.Run("BadID", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, f.organizer, http.MethodDelete, "/api/v1/events/xyz", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestEventHandler_Cancel(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.organizer, http.MethodPost, "/api/v1/events/"+f.event.ID.String()+"/cancel", map[string]string{"reason": "rain"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, ok := f.store.Event(f.event.ID)
	require.True(t, ok)
	assert.Equal(t, domain.EventCanceled, stored.Status)
}

func TestInvolvementHandler_Get(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, f.organizer, http.MethodGet, "/api/v1/me/involvement", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	inv := decode[domain.Involvement](t, resp)
	require.Len(t, inv.Entries, 1)
	assert.Equal(t, f.event.ID, inv.Entries[0].Event.ID)
}
