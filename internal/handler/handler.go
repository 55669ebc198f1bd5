package handler

import "agenda-eventos/internal/service"

type Handlers struct {
	Involvement  *InvolvementHandler
	Notification *NotificationHandler
	Event        *EventHandler
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Involvement:  NewInvolvementHandler(services.Involvement),
		Notification: NewNotificationHandler(services.Notification, services.Decision, services.Retention, services.Inbox),
		Event:        NewEventHandler(services.Cascade),
	}
}
