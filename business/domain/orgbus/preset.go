package orgbus

import (
	"fmt"

	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
)

// Set of known configuration presets.
const (
	PresetCompleteIntegration = "complete-integration"
	PresetBrandSeparation     = "brand-separation"
	PresetHotelIndependence   = "hotel-independence"
)

// Presets returns the identifiers of the known presets.
func Presets() []string {
	return []string{
		PresetCompleteIntegration,
		PresetBrandSeparation,
		PresetHotelIndependence,
	}
}

// PresetPolicies expands a preset identifier into the explicit policy rows
// it stands for. Applying a preset writes these rows on the node, so a
// preset overrides whatever the node's type defaults would have been.
func PresetPolicies(presetID string) ([]NewDataSharingPolicy, error) {
	switch presetID {
	case PresetCompleteIntegration:
		// Everything visible and writable across the whole group.
		return DefaultPolicies(orgtype.Group), nil

	case PresetBrandSeparation:
		// Brands operate independently; only analytics summaries roll up.
		return DefaultPolicies(orgtype.Brand), nil

	case PresetHotelIndependence:
		// Each hotel is an island with full control of its own data.
		policies := make([]NewDataSharingPolicy, 0, len(datacategory.All()))
		for _, category := range datacategory.All() {
			policies = append(policies, NewDataSharingPolicy{
				Category: category,
				Scope:    sharingscope.Hotel,
				Level:    accesslevel.Full,
			})
		}
		return policies, nil
	}

	return nil, fmt.Errorf("preset[%s]: %w", presetID, ErrPresetNotFound)
}
