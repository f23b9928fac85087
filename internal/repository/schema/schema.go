// Package schema defines the Redis/Valkey key layout and hash encoding shared by the item,
// vector and history repositories.
package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/promptdex/internal/db"
	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// Hash field names.
const (
	FieldItemID      = "item_id"
	FieldTitle       = "title"
	FieldBody        = "body"
	FieldTags        = "tags"
	FieldOwnerID     = "owner_id"
	FieldWorkspaceID = "workspace_id"
	FieldVisibility  = "visibility"
	FieldUsageCount  = "usage_count"
	FieldCreatedAt   = "created_at"
	FieldVector      = "vector"
)

// Visibility tag values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// TitleWeight makes title matches count twice as much as body matches.
const TitleWeight = 2.0

var (
	itemPrefix    = domain.KeyPrefix + "item:"
	vecPrefix     = domain.KeyPrefix + "vec:"
	historyPrefix = domain.KeyPrefix + "history:"
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// ItemsIndex is the FT index over item hashes.
const ItemsIndex = domain.KeyPrefix + "items:idx"

// ItemKey returns the hash key of an item.
func ItemKey(id string) string { return itemPrefix + id }

// ItemPattern matches every item key.
func ItemPattern() string { return itemPrefix + "*" }

// ItemIDFromKey strips the item prefix.
func ItemIDFromKey(key string) string { return strings.TrimPrefix(key, itemPrefix) }

// ModelSlug makes a model name safe for keys and index names.
func ModelSlug(model string) string { return unsafeChars.ReplaceAllString(model, "_") }

// VectorPrefix returns the key prefix for one model's embedding records.
func VectorPrefix(model string) string { return vecPrefix + ModelSlug(model) + ":" }

// VectorKey returns the hash key of one embedding record.
func VectorKey(model, id string) string { return VectorPrefix(model) + id }

// VectorIndex returns the FT index name for one model.
func VectorIndex(model string) string { return vecPrefix + ModelSlug(model) + ":idx" }

// VectorPatternForItem matches an item's embedding records across models.
func VectorPatternForItem(id string) string { return vecPrefix + "*:" + id }

// HistoryKey returns the list key holding a user's search history.
func HistoryKey(userID string) string { return historyPrefix + userID }

// ItemsIndexDef is the full-text index over item hashes.
func ItemsIndexDef() *db.IndexDefinition {
	return db.NewIndex(ItemsIndex).
		Prefix(itemPrefix).
		TextWeighted(FieldTitle, TitleWeight).
		Text(FieldBody).
		TagWithOpts(FieldTags, ",", false).
		Tag(FieldOwnerID).
		Tag(FieldWorkspaceID).
		Tag(FieldVisibility).
		Numeric(FieldUsageCount).
		Numeric(FieldCreatedAt).
		MustBuild()
}

// VectorIndexOptions tune the vector index.
type VectorIndexOptions struct {
	Algorithm      db.VectorAlgorithm
	M              int
	EFConstruction int
}

// VectorIndexDef is the KNN index over one model's embedding records.
// It carries the access and filter fields so KNN can be pre-filtered.
func VectorIndexDef(model string, dims int, opts VectorIndexOptions) (*db.IndexDefinition, error) {
	b := db.NewIndex(VectorIndex(model)).
		Prefix(VectorPrefix(model)).
		TagWithOpts(FieldTags, ",", false).
		Tag(FieldOwnerID).
		Tag(FieldWorkspaceID).
		Tag(FieldVisibility).
		Numeric(FieldUsageCount).
		Numeric(FieldCreatedAt)
	if opts.Algorithm == db.VectorFlat {
		b = b.VectorFlat(FieldVector, dims, db.DistanceCosine, 0)
	} else {
		b = b.VectorHNSW(FieldVector, dims, db.DistanceCosine, opts.M, opts.EFConstruction)
	}
	return b.Build()
}

// AccessFields returns the fields copied onto every record that must be pre-filtered by access.
func AccessFields(it *item.Item) map[string]string {
	vis := VisibilityPrivate
	if it.IsPublic() {
		vis = VisibilityPublic
	}
	return map[string]string{
		FieldItemID:      it.ID(),
		FieldTags:        strings.Join(it.Tags(), ","),
		FieldOwnerID:     it.OwnerID(),
		FieldWorkspaceID: it.WorkspaceID(),
		FieldVisibility:  vis,
		FieldUsageCount:  strconv.Itoa(it.UsageCount()),
		FieldCreatedAt:   strconv.FormatInt(it.CreatedAt().UnixMilli(), 10),
	}
}

// EncodeItem flattens an item into hash fields.
func EncodeItem(it *item.Item) map[string]string {
	m := AccessFields(it)
	m[FieldTitle] = it.Title()
	m[FieldBody] = it.Body()
	return m
}

// DecodeItem rebuilds an item from hash fields. ok is false for an empty or foreign hash.
func DecodeItem(id string, m map[string]string) (item.Item, bool) {
	if len(m) == 0 || m[FieldOwnerID] == "" {
		return item.Item{}, false
	}
	var tags []string
	if t := m[FieldTags]; t != "" {
		tags = strings.Split(t, ",")
	}
	usage, _ := strconv.Atoi(m[FieldUsageCount])
	ms, _ := strconv.ParseInt(m[FieldCreatedAt], 10, 64)
	if v := m[FieldItemID]; v != "" {
		id = v
	}
	return item.Reconstruct(item.Attrs{
		ID:          id,
		Title:       m[FieldTitle],
		Body:        m[FieldBody],
		Tags:        tags,
		OwnerID:     m[FieldOwnerID],
		WorkspaceID: m[FieldWorkspaceID],
		IsPublic:    m[FieldVisibility] == VisibilityPublic,
		UsageCount:  usage,
		CreatedAt:   time.UnixMilli(ms).UTC(),
	}), true
}
