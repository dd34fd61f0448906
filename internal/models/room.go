package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// Room is the persisted room directory entry. Live membership and the
// stroke log never touch the database - they belong to the hub. Using
// KSUID primary keys keeps listing time-ordered without an extra index.
type Room struct {
	ID        string         `json:"id" gorm:"type:char(27);primaryKey"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	CreatedBy string         `json:"created_by" gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`
}

// BeforeCreate hook generates KSUID before inserting
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = ksuid.New().String()
	}
	return nil
}

type RoomCreate struct {
	Name string `json:"name"`
}

// ChatRecord is the archived form of a chat event. EventID is the wire
// event id, so replays and archives can be correlated.
type ChatRecord struct {
	ID       string    `json:"id" gorm:"type:char(27);primaryKey"`
	EventID  string    `json:"event_id" gorm:"type:char(36);uniqueIndex"`
	RoomID   string    `json:"room_id" gorm:"type:text;not null;index"`
	UserID   string    `json:"user_id" gorm:"type:text;not null"`
	UserName string    `json:"user_name" gorm:"type:text;not null"`
	Content  string    `json:"content" gorm:"type:text;not null"`
	SentAt   time.Time `json:"sent_at" gorm:"column:sent_at;not null"`
}

func (c *ChatRecord) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = ksuid.New().String()
	}
	return nil
}

// ChatRecordFromEvent converts a live chat event into its archived form
func ChatRecordFromEvent(ev *Event) *ChatRecord {
	return &ChatRecord{
		EventID:  ev.ID,
		RoomID:   ev.RoomID,
		UserID:   ev.UserID,
		UserName: ev.UserName,
		Content:  ev.Content,
		SentAt:   ev.Timestamp,
	}
}
