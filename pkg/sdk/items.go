package promptdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/promptdex/internal/domain"
	dombatch "github.com/kailas-cloud/promptdex/internal/domain/batch"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
)

// Upsert writes a prompt to the index and embeds it. Returns true if created.
// An embedding failure is returned after the item itself has been stored.
func (c *Client) Upsert(ctx context.Context, it Item) (bool, error) {
	return c.upsert(ctx, it, true)
}

// UpsertMetadata writes a prompt without re-embedding it. Use it when only
// visibility, tags or usage changed; stored vectors pick up the new access fields.
func (c *Client) UpsertMetadata(ctx context.Context, it Item) (bool, error) {
	return c.upsert(ctx, it, false)
}

func (c *Client) upsert(ctx context.Context, it Item, embed bool) (created bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upsert", start, err) }()

	d, err := toInternalItem(it)
	if err != nil {
		return false, fmt.Errorf("upsert: %w", domain.Invalid("item", err.Error()))
	}
	created, err = c.catalogSvc.Upsert(ctx, &d, embed)
	if err != nil {
		return created, fmt.Errorf("upsert: %w", err)
	}
	return created, nil
}

// Delete removes a prompt and its vectors. Deleting a missing prompt is not an error.
func (c *Client) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	if err = c.catalogSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// UpsertBatch writes and embeds many prompts. Invalid prompts fail individually;
// results follow the input order.
func (c *Client) UpsertBatch(ctx context.Context, items []Item) []BatchResult {
	start := time.Now()
	out := make([]dombatch.Result, len(items))
	valid := make([]item.Item, 0, len(items))
	pos := make([]int, 0, len(items))
	for i, it := range items {
		d, err := toInternalItem(it)
		if err != nil {
			out[i] = dombatch.NewError(it.ID, domain.Invalid("item", err.Error()))
			continue
		}
		valid = append(valid, d)
		pos = append(pos, i)
	}
	for j, r := range c.batchSvc.Upsert(ctx, valid, true) {
		out[pos[j]] = r
	}
	c.obs.observe("batch_upsert", start, firstError(out))
	return fromBatchResults(out)
}

// DeleteBatch removes many prompts.
func (c *Client) DeleteBatch(ctx context.Context, ids []string) []BatchResult {
	start := time.Now()
	res := c.batchSvc.Delete(ctx, ids)
	c.obs.observe("batch_delete", start, firstError(res))
	return fromBatchResults(res)
}

func firstError(rs []dombatch.Result) error {
	for _, r := range rs {
		if !r.OK() {
			return r.Err()
		}
	}
	return nil
}
