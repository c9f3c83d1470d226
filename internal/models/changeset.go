package models

// ChangeSet изменения одного действия пользователя. Сервер применяет их
// целиком или не применяет вовсе.
type ChangeSet struct {
	NewRequests []SwapRequest    `json:"new_requests,omitempty"`
	Requests    []SwapRequest    `json:"requests,omitempty"`
	Items       []Item           `json:"items,omitempty"`
	Users       []User           `json:"users,omitempty"`
	Events      []CommunityEvent `json:"events,omitempty"`
}

// Empty сообщает, что применять нечего
func (c ChangeSet) Empty() bool {
	return len(c.NewRequests) == 0 && len(c.Requests) == 0 && len(c.Items) == 0 &&
		len(c.Users) == 0 && len(c.Events) == 0
}
