package store

import (
	"log"
	"slices"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

type revKey struct {
	kind string
	id   uuid.UUID
}

type journalEntry struct {
	key revKey
	rev uint64
	// pre значение до изменения, nil для созданной командой сущности
	pre     any
	restore func(sn *snapshot)
}

type messageRef struct {
	requestID uuid.UUID
	id        uuid.UUID
}

// journal запоминает состояние сущностей до оптимистичного изменения.
//
// После применения команда «запечатывает» журнал: каждая затронутая
// сущность получает новую версию. Откат восстанавливает только те сущности,
// версия которых с тех пор не менялась, поэтому более поздняя команда,
// завершившаяся раньше, не теряет свои изменения.
type journal struct {
	entries []journalEntry
	seen    map[revKey]bool

	addedMessages      []messageRef
	addedNotifications []uuid.UUID

	// отложенные эффекты, выполняются после подтверждения без блокировки
	outbox              []models.Notification
	invalidateAnalytics bool
	persistSession      bool
	clearSession        bool
	after               []func()
}

func newJournal() *journal {
	return &journal{seen: make(map[revKey]bool)}
}

func (j *journal) record(key revKey, restore func(*snapshot)) {
	if j.seen[key] {
		return
	}
	j.seen[key] = true
	j.entries = append(j.entries, journalEntry{key: key, restore: restore})
}

func journalEntity[T any](j *journal, c *collection[T], kind string, id uuid.UUID) {
	key := revKey{kind: kind, id: id}
	if j.seen[key] {
		return
	}
	pre, existed := c.get(id)
	e := journalEntry{key: key, restore: func(*snapshot) {
		if existed {
			c.put(id, pre)
		} else {
			c.remove(id)
		}
	}}
	if existed {
		e.pre = pre
	}
	j.seen[key] = true
	j.entries = append(j.entries, e)
}

func (j *journal) item(sn *snapshot, id uuid.UUID)    { journalEntity(j, sn.items, "item", id) }
func (j *journal) request(sn *snapshot, id uuid.UUID) { journalEntity(j, sn.requests, "request", id) }
func (j *journal) user(sn *snapshot, id uuid.UUID)    { journalEntity(j, sn.users, "user", id) }
func (j *journal) review(sn *snapshot, id uuid.UUID)  { journalEntity(j, sn.reviews, "review", id) }
func (j *journal) post(sn *snapshot, id uuid.UUID)    { journalEntity(j, sn.posts, "post", id) }
func (j *journal) event(sn *snapshot, id uuid.UUID)   { journalEntity(j, sn.events, "event", id) }

func (j *journal) meta(sn *snapshot, requestID uuid.UUID) {
	key := revKey{kind: "meta", id: requestID}
	if j.seen[key] {
		return
	}
	pre, existed := sn.conversations[requestID]
	j.record(key, func(sn *snapshot) {
		if existed {
			sn.conversations[requestID] = pre
		} else {
			delete(sn.conversations, requestID)
		}
	})
}

// messages запоминает всю переписку целиком
func (j *journal) messages(sn *snapshot, requestID uuid.UUID) {
	key := revKey{kind: "messages", id: requestID}
	if j.seen[key] {
		return
	}
	pre := copyMessages(sn.messages[requestID])
	j.record(key, func(sn *snapshot) {
		sn.messages[requestID] = copyMessages(pre)
	})
}

func (j *journal) saved(sn *snapshot) {
	key := revKey{kind: "saved"}
	if j.seen[key] {
		return
	}
	pre := slices.Clone(sn.saved)
	j.record(key, func(sn *snapshot) { sn.saved = slices.Clone(pre) })
}

func (j *journal) session(sn *snapshot) {
	key := revKey{kind: "session"}
	if j.seen[key] {
		return
	}
	pre := sn.session
	prePerms := permissions.Set{}
	for p := range sn.perms {
		prePerms[p] = struct{}{}
	}
	j.record(key, func(sn *snapshot) {
		sn.session = pre
		sn.perms = prePerms
	})
}

// addMessage запоминает добавленное сообщение, чтобы удалить его при откате
func (j *journal) addMessage(requestID, id uuid.UUID) {
	j.addedMessages = append(j.addedMessages, messageRef{requestID: requestID, id: id})
}

func (j *journal) addNotification(id uuid.UUID) {
	j.addedNotifications = append(j.addedNotifications, id)
}

// seal назначает затронутым сущностям новую версию
func (j *journal) seal(sn *snapshot) {
	sn.clock++
	for i := range j.entries {
		sn.rev[j.entries[i].key] = sn.clock
		j.entries[i].rev = sn.clock
	}
}

// undo откатывает изменения команды. force восстанавливает всё без проверки версий
// и используется, когда команда не была запечатана.
func (j *journal) undo(sn *snapshot, force bool) {
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		if !force && sn.rev[e.key] != e.rev {
			log.Printf("⚠️ Откат пропущен: %s %s изменён другим действием", e.key.kind, e.key.id)
			continue
		}
		e.restore(sn)
		if !force {
			sn.clock++
			sn.rev[e.key] = sn.clock
		}
	}
	for _, ref := range j.addedMessages {
		sn.removeMessage(ref.requestID, ref.id)
	}
	for _, id := range j.addedNotifications {
		sn.removeNotification(id)
	}
}
