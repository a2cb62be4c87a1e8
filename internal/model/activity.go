package model

import "time"

// Activity — бронируемое событие. Чату нужны только поля для проверки доступа;
// остальные атрибуты (адрес, места, цена) живут в CRUD-сервисе.
type Activity struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	HostUserID         *int64    `json:"host_user_id,omitempty"`
	HostOrganisationID *int64    `json:"host_organisation_id,omitempty"`
	// OrgOwnerID — владелец организации-хоста (подтягивается JOIN-ом, не колонка activities).
	OrgOwnerID *int64    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
