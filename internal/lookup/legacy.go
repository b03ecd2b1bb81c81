// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lookup

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/validate"
)

// Unspecified is the v1 identifier of an account without English pronouns.
const Unspecified = "unspecified"

// shieldLocale is the only locale badges are rendered in.
const shieldLocale = "en"

// ErrLegacyIDRequired is returned by the v1 single lookup when a parameter is missing.
var ErrLegacyIDRequired = apperr.BadRequest("LOOKUP_PARAMS_REQUIRED", "`platform` and `id` query parameters are required.")

// LegacyPlatforms are the platforms the v1 API knew about.
var LegacyPlatforms = []string{"discord", "github", "minecraft", "twitch", "twitter"}

// legacyIdentifiers maps the first two English sets to the short v1 codes.
// v1 could not express a third set, so it is dropped.
var legacyIdentifiers = map[string]string{
	"he":       "hh",
	"he/it":    "hi",
	"he/she":   "hs",
	"he/they":  "ht",
	"it":       "ii",
	"it/he":    "ih",
	"it/she":   "is",
	"it/they":  "it",
	"she":      "sh",
	"she/he":   "shh",
	"she/it":   "si",
	"she/they": "st",
	"they":     "tt",
	"they/he":  "th",
	"they/it":  "ti",
	"they/she": "ts",
	"any":      "any",
	"ask":      "ask",
	"avoid":    "avoid",
	"other":    "other",
}

// englishForms is the subject/object form of each English set.
var englishForms = map[string]string{
	"he":    "he/him",
	"it":    "it/its",
	"she":   "she/her",
	"they":  "they/them",
	"any":   "any pronouns",
	"ask":   "ask me my pronouns",
	"avoid": "avoid pronouns, use my name",
	"other": "other pronouns",
}

// LegacyIdentifier converts English pronoun sets to a v1 identifier.
func LegacyIdentifier(sets []string) string {
	if len(sets) == 0 {
		return Unspecified
	}

	key := strings.Join(sets[:min(len(sets), 2)], "/")
	if identifier, ok := legacyIdentifiers[key]; ok {
		return identifier
	}
	return "other"
}

/*
FormatPronouns renders English pronoun sets for humans.

Description: A single set is shown with its object form ("she/her"), several
sets are shown by their subject forms ("she/they"). Unknown sets are printed
as stored.
*/
func FormatPronouns(sets []string, capitalize bool) string {
	var text string
	if len(sets) == 1 {
		text = sets[0]
		if form, ok := englishForms[sets[0]]; ok {
			text = form
		}
	} else {
		text = strings.Join(sets, "/")
	}

	if !capitalize {
		return text
	}

	parts := strings.Split(text, "/")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "/")
}

// # Legacy Lookup

// LegacyResult holds the v1 identifiers of one lookup, keyed by account id.
// Every requested id is present; misses map to [Unspecified].
type LegacyResult struct {
	Identifiers map[string]string
	Hits        int
}

/*
LegacyLookup resolves accounts for the v1 API.

Parameters:
  - platform: string (one of LegacyPlatforms)
  - ids: []string (distinct account ids, 1 to 50)

Returns:
  - *LegacyResult: An identifier for every requested id
  - error: ErrInvalidPlatform, ErrInvalidIDCount or storage failures
*/
func (service *Service) LegacyLookup(context context.Context, platform string, ids []string) (*LegacyResult, error) {
	if !slices.Contains(LegacyPlatforms, platform) {
		return nil, ErrInvalidPlatform
	}
	if len(ids) < 1 || len(ids) > constants.LookupMaxIDs {
		return nil, ErrInvalidIDCount
	}

	found, err := service.repository.LookupPronouns(context, platform, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup_service_legacy_lookup_failed: %w", err)
	}

	identifiers := make(map[string]string, len(ids))
	for _, id := range ids {
		identifiers[id] = Unspecified
	}
	for _, item := range found {
		identifiers[item.AccountID] = LegacyIdentifier(item.Pronouns["en"])
	}

	return &LegacyResult{Identifiers: identifiers, Hits: len(found)}, nil
}

// # Shields

// Shield is a shields.io endpoint badge.
type Shield struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	IsError       bool   `json:"isError,omitempty"`
}

/*
Shield renders the English pronouns of a user as a badge.

Returns:
  - *Shield: The badge, or an error badge when the user has no English pronouns
  - error: ErrInvalidUserID or storage failures
*/
func (service *Service) Shield(context context.Context, id string, capitalize bool) (*Shield, error) {
	if !validate.IsUUID(id) {
		return nil, ErrInvalidUserID
	}

	sets, err := service.repository.GetPronouns(context, strings.ToLower(id), shieldLocale)
	if err != nil {
		return nil, fmt.Errorf("lookup_service_shield_failed: %w", err)
	}
	if sets == nil {
		return &Shield{SchemaVersion: 1, Label: "error", Message: "not found", IsError: true}, nil
	}

	label := "pronouns"
	if capitalize {
		label = "Pronouns"
	}
	return &Shield{SchemaVersion: 1, Label: label, Message: FormatPronouns(sets, capitalize)}, nil
}
