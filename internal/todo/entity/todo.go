package entity

import "time"

// Todo is a row in the todos table. OwnerID is never sent to clients.
type Todo struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"-"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Completed   bool      `db:"completed" json:"completed"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// Apply writes the set fields of p onto t.
func (p Patch) Apply(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}
