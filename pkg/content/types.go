package content

import (
	"errors"
	"time"
)

// ItemKind is the kind of a content item
type ItemKind string

const (
	KindArticle ItemKind = "article"
	KindBlog    ItemKind = "blog"
	KindVideo   ItemKind = "video"
	KindCourse  ItemKind = "course"
)

// AllKinds lists every content kind
var AllKinds = []ItemKind{KindArticle, KindBlog, KindVideo, KindCourse}

// IsValid reports whether the kind is known
func (k ItemKind) IsValid() bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// AccessLevel gates who may view an item
type AccessLevel string

const (
	// AccessFree items are visible to everyone, including anonymous
	// visitors
	AccessFree AccessLevel = "free"

	// AccessPremium items need an entitlement covering the item's
	// workspace
	AccessPremium AccessLevel = "premium"
)

// ItemStatus is the publication state of an item
type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusPublished ItemStatus = "published"
	StatusArchived  ItemStatus = "archived"
)

// Item is one piece of content in a workspace
type Item struct {
	ID          string      `json:"id"`
	WorkspaceID string      `json:"workspace_id"`
	Kind        ItemKind    `json:"kind"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Access      AccessLevel `json:"access"`
	Status      ItemStatus  `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsPublished reports whether the item is publicly listed
func (i *Item) IsPublished() bool {
	return i.Status == StatusPublished
}

// ListItemsFilter narrows ListItems results. Zero values match
// everything.
type ListItemsFilter struct {
	Kind   ItemKind
	Access AccessLevel
	Status ItemStatus
}

// Store errors
var (
	ErrItemNotFound  = errors.New("content item not found")
	ErrDuplicateSlug = errors.New("slug already in use in this workspace")
)
