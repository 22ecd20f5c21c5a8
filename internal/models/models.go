package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ItemListVersion is the schema version written with every item list.
const ItemListVersion = 1

// ProcessingJob mirrors the processing_jobs table schema.
type ProcessingJob struct {
	ID                   int64     `db:"id" json:"id"`
	UserID               int64     `db:"user_id" json:"user_id"`
	Status               JobStatus `db:"status" json:"status"`
	CurrentStep          string    `db:"current_step" json:"current_step"`
	ProgressPercentage   int       `db:"progress_percentage" json:"progress_percentage"`
	ErrorMessage         *string   `db:"error_message" json:"error_message,omitempty"`
	Confirmed            bool      `db:"confirmed" json:"confirmed"`
	ImageType            ImageType `db:"image_type" json:"image_type"`
	OriginalFilename     string    `db:"original_filename" json:"original_filename"`
	OriginalImageRef     *string   `db:"original_image_ref" json:"original_image_ref,omitempty"`
	BackgroundRemovedRef *string   `db:"background_removed_ref" json:"background_removed_ref,omitempty"`
	SegmentedRef         *string   `db:"segmented_ref" json:"segmented_ref,omitempty"`
	InpaintedRef         *string   `db:"inpainted_ref" json:"inpainted_ref,omitempty"`
	SelectedImageRef     *string   `db:"selected_image_ref" json:"selected_image_ref,omitempty"`
	SuggestedCategory    *string   `db:"suggested_category" json:"suggested_category,omitempty"`
	ClassificationLabel  *string   `db:"classification_label" json:"classification_label,omitempty"`
	AreaPixels           *int64    `db:"area_pixels" json:"area_pixels,omitempty"`
	SegmentedItems       *ItemList `db:"segmented_items" json:"segmented_items,omitempty"`
	ExpandedItems        *ItemList `db:"expanded_items" json:"expanded_items,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Refs returns every image reference produced for the job, original first.
func (j *ProcessingJob) Refs() []string {
	var refs []string
	for _, r := range []*string{j.OriginalImageRef, j.BackgroundRemovedRef, j.SegmentedRef, j.InpaintedRef} {
		if r != nil && *r != "" {
			refs = append(refs, *r)
		}
	}
	for _, list := range []*ItemList{j.SegmentedItems, j.ExpandedItems} {
		if list == nil {
			continue
		}
		for _, it := range list.Items {
			refs = append(refs, it.Ref)
		}
	}
	return refs
}

// HasRef reports whether ref is one of Refs().
func (j *ProcessingJob) HasRef(ref string) bool {
	for _, r := range j.Refs() {
		if r == ref {
			return true
		}
	}
	return false
}

// Item is one detected garment stored for a job.
type Item struct {
	Label      string `json:"label"`
	Ref        string `json:"ref"`
	AreaPixels int64  `json:"area_pixels"`
}

// ItemList is the stored form of segmented_items / expanded_items.
// A nil *ItemList means the field was never set; an ItemList with no
// items was set by a result that produced nothing.
type ItemList struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// NewItemList copies items into a versioned list ordered by area, largest first.
func NewItemList(items []Item) *ItemList {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].AreaPixels > sorted[b].AreaPixels
	})
	return &ItemList{Version: ItemListVersion, Items: sorted}
}

// Len is safe on a nil list.
func (l *ItemList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// MarshalItemList encodes a list for a JSONB column. A nil list encodes to nil (SQL NULL).
func MarshalItemList(l *ItemList) ([]byte, error) {
	if l == nil {
		return nil, nil
	}
	if l.Items == nil {
		l = &ItemList{Version: l.Version, Items: []Item{}}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal item list: %w", err)
	}
	return b, nil
}

// UnmarshalItemList decodes a JSONB column. NULL (nil or empty input) decodes to nil.
func UnmarshalItemList(raw []byte) (*ItemList, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var l ItemList
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("unmarshal item list: %w", err)
	}
	if l.Version == 0 {
		l.Version = ItemListVersion
	}
	if l.Items == nil {
		l.Items = []Item{}
	}
	return &l, nil
}

// ResultOutcome is everything a reconciled worker result writes to a job.
type ResultOutcome struct {
	Success              bool
	ErrorMessage         string
	BackgroundRemovedRef *string
	SegmentedRef         *string
	InpaintedRef         *string
	SuggestedCategory    *string
	ClassificationLabel  *string
	AreaPixels           *int64
	SegmentedItems       *ItemList
	ExpandedItems        *ItemList
}

// Status is the status the outcome moves the job to.
func (o ResultOutcome) Status() JobStatus {
	if o.Success {
		return JobStatusReadyForReview
	}
	return JobStatusFailed
}

// ProgressUpdate is the display state recorded from a progress message.
type ProgressUpdate struct {
	Step       string
	Percentage int
}

// ClampPercentage forces p into 0..100.
func ClampPercentage(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
