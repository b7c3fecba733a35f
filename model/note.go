package model

import (
	"time"
)

// Note is a single free-text note. Version starts at 1 and grows by exactly
// one on every accepted update.
type Note struct {
	ID        string    `bson:"_id" json:"id"`
	Content   string    `bson:"content" json:"content"`
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// Snapshot returns the shareable value copy of the note.
func (n *Note) Snapshot() Snapshot {
	return Snapshot{
		ID:        n.ID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt.UTC(),
		Version:   n.Version,
	}
}

// Snapshot is a point-in-time copy of a note carried entirely inside a share
// token.
type Snapshot struct {
	ID        string    `json:"id" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	CreatedAt time.Time `json:"created_at" validate:"required"`
	Version   int64     `json:"version" validate:"required,min=1"`
}

func (s Snapshot) Equal(o Snapshot) bool {
	return s.ID == o.ID &&
		s.Content == o.Content &&
		s.Version == o.Version &&
		s.CreatedAt.Equal(o.CreatedAt)
}
