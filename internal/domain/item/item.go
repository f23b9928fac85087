package item

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Item limits.
const (
	MaxIDLength    = 128
	MaxTitleLength = 512
	MaxBodySize    = 65536 // 64KB
	MaxTags        = 32
	MaxTagLength   = 64
)

// Item is a searchable prompt mirrored from the entity store (value object).
type Item struct {
	id          string
	title       string
	body        string
	tags        []string
	ownerID     string
	workspaceID string
	isPublic    bool
	usageCount  int
	createdAt   time.Time
}

// Attrs carries the raw fields for New.
type Attrs struct {
	ID          string
	Title       string
	Body        string
	Tags        []string
	OwnerID     string
	WorkspaceID string
	IsPublic    bool
	UsageCount  int
	CreatedAt   time.Time
}

// New validates attributes and creates an Item.
// Tags are lower-cased, trimmed and deduplicated.
func New(a Attrs) (Item, error) {
	if a.ID == "" {
		return Item{}, fmt.Errorf("item ID is required")
	}
	if len(a.ID) > MaxIDLength {
		return Item{}, fmt.Errorf("item ID too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(a.ID) {
		return Item{}, fmt.Errorf("item ID must be alphanumeric with underscores and hyphens")
	}
	if strings.TrimSpace(a.Title) == "" {
		return Item{}, fmt.Errorf("title is required")
	}
	if len(a.Title) > MaxTitleLength {
		return Item{}, fmt.Errorf("title too long (max %d)", MaxTitleLength)
	}
	if len(a.Body) > MaxBodySize {
		return Item{}, fmt.Errorf("body too large (max %d bytes)", MaxBodySize)
	}
	if a.OwnerID == "" {
		return Item{}, fmt.Errorf("owner ID is required")
	}
	if a.UsageCount < 0 {
		return Item{}, fmt.Errorf("usage count must be >= 0")
	}
	tags, err := normalizeTags(a.Tags)
	if err != nil {
		return Item{}, err
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return Item{
		id:          a.ID,
		title:       a.Title,
		body:        a.Body,
		tags:        tags,
		ownerID:     a.OwnerID,
		workspaceID: a.WorkspaceID,
		isPublic:    a.IsPublic,
		usageCount:  a.UsageCount,
		createdAt:   createdAt.UTC(),
	}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(a Attrs) Item {
	return Item{
		id:          a.ID,
		title:       a.Title,
		body:        a.Body,
		tags:        a.Tags,
		ownerID:     a.OwnerID,
		workspaceID: a.WorkspaceID,
		isPublic:    a.IsPublic,
		usageCount:  a.UsageCount,
		createdAt:   a.CreatedAt.UTC(),
	}
}

// ID returns the item identifier.
func (i *Item) ID() string { return i.id }

// Title returns the prompt title.
func (i *Item) Title() string { return i.title }

// Body returns the prompt body.
func (i *Item) Body() string { return i.body }

// Tags returns the normalized tag set.
func (i *Item) Tags() []string { return i.tags }

// OwnerID returns the owning user.
func (i *Item) OwnerID() string { return i.ownerID }

// WorkspaceID returns the workspace, empty when the item is personal.
func (i *Item) WorkspaceID() string { return i.workspaceID }

// IsPublic reports whether the item is published to everyone.
func (i *Item) IsPublic() bool { return i.isPublic }

// UsageCount returns how many times the prompt was used.
func (i *Item) UsageCount() int { return i.usageCount }

// CreatedAt returns the creation time (UTC).
func (i *Item) CreatedAt() time.Time { return i.createdAt }

// HasTag reports whether the item carries tag (case-insensitive).
func (i *Item) HasTag(tag string) bool {
	return slices.Contains(i.tags, strings.ToLower(strings.TrimSpace(tag)))
}

// EmbeddingText is the text sent to the embedding provider for this item.
func (i *Item) EmbeddingText() string {
	if i.body == "" {
		return i.title
	}
	return i.title + "\n\n" + i.body
}

// Attrs returns the item fields as a plain struct.
func (i *Item) Attrs() Attrs {
	return Attrs{
		ID:          i.id,
		Title:       i.title,
		Body:        i.body,
		Tags:        slices.Clone(i.tags),
		OwnerID:     i.ownerID,
		WorkspaceID: i.workspaceID,
		IsPublic:    i.isPublic,
		UsageCount:  i.usageCount,
		CreatedAt:   i.createdAt,
	}
}

func normalizeTags(raw []string) ([]string, error) {
	if len(raw) > MaxTags {
		return nil, fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if len(t) > MaxTagLength {
			return nil, fmt.Errorf("tag %q too long (max %d)", t, MaxTagLength)
		}
		if strings.Contains(t, ",") {
			return nil, fmt.Errorf("tag %q must not contain commas", t)
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}
