package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"agenda-eventos/internal/domain"
	"agenda-eventos/internal/inbox"
	"agenda-eventos/internal/middleware"
	"agenda-eventos/internal/service/decision"
	"agenda-eventos/internal/service/notification"
	"agenda-eventos/internal/service/retention"
)

const streamKeepAlive = 25 * time.Second

type NotificationHandler struct {
	notifService     notification.Service
	decisionService  decision.Service
	retentionService retention.Service
	hub              *inbox.Hub
}

func NewNotificationHandler(
	notifService notification.Service,
	decisionService decision.Service,
	retentionService retention.Service,
	hub *inbox.Hub,
) *NotificationHandler {
	return &NotificationHandler{
		notifService:     notifService,
		decisionService:  decisionService,
		retentionService: retentionService,
		hub:              hub,
	}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	feed, err := h.notifService.Aggregate(c.UserContext(), user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(feed)
}

func (h *NotificationHandler) Badge(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	feed, err := h.notifService.Aggregate(c.UserContext(), user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count": feed.Badge,
	})
}

// Stream sends the feed as server-sent events: one snapshot on connect and
// one after every change, with periodic comments to keep proxies open.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	ib, release, err := h.hub.Acquire(c.UserContext(), user)
	if err != nil {
		return err
	}
	updates, stop := ib.Listen()
	first := ib.Snapshot()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer release()
		defer stop()

		if err := writeFeed(w, first); err != nil {
			return
		}

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		for {
			select {
			case feed := <-updates:
				if err := writeFeed(w, feed); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeFeed(w *bufio.Writer, feed domain.Feed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: feed\ndata: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}

func (h *NotificationHandler) Create(c *fiber.Ctx) error {
	if middleware.GetCurrentUser(c) == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	var input domain.CreateNotificationInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("Invalid request body")
	}

	notif, err := h.notifService.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(notif)
}

// MarkAsRead goes through the user's live inbox when a stream is open so
// the stream reflects the change at once.
func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	key := c.Params("key")
	if ib, ok := h.liveInbox(userID, key); ok {
		if err := ib.MarkRead(c.UserContext(), key); err != nil {
			return err
		}
		return c.Status(fiber.StatusNoContent).SendString("")
	}

	parsed, err := domain.ParseEntryKey(key)
	if err != nil {
		return middleware.BadRequest("Invalid notification key")
	}
	if parsed.Source != domain.SourcePersisted {
		return domain.ErrNotActionable
	}

	if err := h.notifService.MarkAsRead(c.UserContext(), userID, parsed.ID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) MarkAllAsRead(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	if err := h.notifService.MarkAllAsRead(c.UserContext(), userID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	key := c.Params("key")
	if ib, ok := h.liveInbox(userID, key); ok {
		if err := ib.Delete(c.UserContext(), key); err != nil {
			return err
		}
		return c.Status(fiber.StatusNoContent).SendString("")
	}

	parsed, err := domain.ParseEntryKey(key)
	if err != nil {
		return middleware.BadRequest("Invalid notification key")
	}
	if parsed.Source != domain.SourcePersisted {
		return fmt.Errorf("%w: %s", domain.ErrNotDeletable, retention.ReasonVirtual)
	}

	if err := h.retentionService.Delete(c.UserContext(), userID, parsed.ID); err != nil {
		return err
	}

	return c.Status(fiber.StatusNoContent).SendString("")
}

// liveInbox returns the user's open inbox when it currently shows key.
func (h *NotificationHandler) liveInbox(userID uuid.UUID, key string) (*inbox.Inbox, bool) {
	ib, ok := h.hub.Get(userID)
	if !ok {
		return nil, false
	}
	snap := ib.Snapshot()
	if _, found := snap.Find(key); !found {
		return nil, false
	}
	return ib, true
}

func (h *NotificationHandler) Decide(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	var input domain.DecisionInput
	if err := c.BodyParser(&input); err != nil {
		return middleware.BadRequest("Invalid request body")
	}
	if !input.Action.IsValid() {
		return middleware.BadRequest("Invalid action")
	}

	entry, err := h.notifService.Resolve(c.UserContext(), user, c.Params("key"))
	if err != nil {
		return err
	}

	outcome, err := h.decisionService.Decide(c.UserContext(), user, entry, input.Action, input.Justification)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func (h *NotificationHandler) ClearSafe(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return middleware.Unauthorized("User not authenticated")
	}

	all := c.QueryBool("all", false)
	readOnly := c.QueryBool("read_only", false)

	result, err := h.retentionService.ClearSafe(c.UserContext(), user, all, readOnly)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
