package repository

import "github.com/deckardhq/deckard/pkg/filterexpr"

// cardListSchema whitelists the filter and order surface for card
// listings. Column names are trusted; literals always go through bind
// parameters.
var cardListSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"front": {
			Column: "c.front",
			Kind:   filterexpr.KindString,
			Ops:    map[filterexpr.Op]struct{}{filterexpr.OpEQ: {}, filterexpr.OpSW: {}},
		},
		"type": {
			Column: "c.type",
			Kind:   filterexpr.KindString,
			Ops:    map[filterexpr.Op]struct{}{filterexpr.OpEQ: {}, filterexpr.OpIN: {}},
		},
		"tag": {
			Kind:     filterexpr.KindString,
			Ops:      map[filterexpr.Op]struct{}{filterexpr.OpEQ: {}},
			Template: "? = ANY(c.tags)",
		},
		"created_at": {
			Column: "c.created_at",
			Kind:   filterexpr.KindTimestamp,
			Ops:    map[filterexpr.Op]struct{}{filterexpr.OpGTE: {}, filterexpr.OpLTE: {}},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		Fields: map[string]filterexpr.OrderField{
			"created_at": {Column: "c.created_at"},
			"updated_at": {Column: "c.updated_at"},
			"front":      {Column: "c.front"},
			"id":         {Column: "c.id"},
		},
	},
}

// reviewListSchema whitelists the review history listing surface.
var reviewListSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"response": {
			Column: "r.response",
			Kind:   filterexpr.KindString,
			Ops:    map[filterexpr.Op]struct{}{filterexpr.OpEQ: {}, filterexpr.OpIN: {}},
		},
		"created_at": {
			Column: "r.created_at",
			Kind:   filterexpr.KindTimestamp,
			Ops:    map[filterexpr.Op]struct{}{filterexpr.OpGTE: {}, filterexpr.OpLTE: {}},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "created_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "id",
		Fields: map[string]filterexpr.OrderField{
			"created_at": {Column: "r.created_at"},
			"id":         {Column: "r.id"},
		},
	},
}
