package model

import "time"

// Chat — журнал сообщений одной активности (один к одному, создаётся лениво
// при первом обращении к чату).
type Chat struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activity_id"`
	CreatedAt  time.Time `json:"created_at"`
}
