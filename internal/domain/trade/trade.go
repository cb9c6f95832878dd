// Package trade contains the proposal model passed between layers.
//
// Assets arrive from the edge as loosely shaped JSON (a player reference or
// a draft pick, depending on which fields are set). They are resolved into
// an explicit tagged variant exactly once, at decode time; downstream code
// never re-inspects field presence.
package trade

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for proposal validation.
var (
	ErrInvalidProposal = errors.New("invalid trade proposal")
)

// AssetKind discriminates the Asset union.
type AssetKind int

const (
	AssetPlayer AssetKind = iota
	AssetDraftPick
)

// Asset is a tagged union of a player and a draft pick.
type Asset struct {
	Kind AssetKind

	// Player fields (Kind == AssetPlayer).
	ExternalID  string
	DisplayName string

	// Draft pick fields (Kind == AssetDraftPick).
	Year      int
	Round     int
	Condition string
}

// Player builds a player asset.
func Player(externalID, displayName string) Asset {
	return Asset{Kind: AssetPlayer, ExternalID: externalID, DisplayName: displayName}
}

// DraftPick builds a draft pick asset.
func DraftPick(year, round int, condition string) Asset {
	return Asset{Kind: AssetDraftPick, Year: year, Round: round, Condition: condition}
}

// Identity returns the canonical identity string used for fingerprinting.
// Players identify by external id when present; the display-name fallback
// is a documented degradation (two spellings of the same player will not
// dedupe). Picks identify as "year:round".
func (a Asset) Identity() string {
	if a.Kind == AssetDraftPick {
		return strconv.Itoa(a.Year) + ":" + strconv.Itoa(a.Round)
	}
	if a.ExternalID != "" {
		return a.ExternalID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(a.DisplayName))
}

// Degraded reports whether the asset identity rests on a display name
// instead of an external id.
func (a Asset) Degraded() bool {
	return a.Kind == AssetPlayer && a.ExternalID == ""
}

// Movement describes one asset crossing team boundaries in a three-team
// trade.
type Movement struct {
	FromTeam string
	ToTeam   string
	Asset    Asset
}

// Proposal is a proposed trade from the perspective of the submitting
// team. Two-team trades use Sent/Received; three-team trades use Movements
// with per-asset from/to attribution. A proposal is transient and
// request-scoped; only its fingerprint and results persist.
type Proposal struct {
	TeamKey    string
	Sport      string
	PartnerKey string

	Sent     []Asset
	Received []Asset

	// Three-team shape. When Movements is non-empty the proposal is a
	// three-team trade and Sent/Received must be empty.
	PartnerKeys []string
	Movements   []Movement
}

// ThreeTeam reports whether the proposal uses the three-team shape.
func (p *Proposal) ThreeTeam() bool {
	return len(p.Movements) > 0
}

// Validate rejects malformed proposals before they reach hashing or
// evaluation.
func (p *Proposal) Validate() error {
	if strings.TrimSpace(p.TeamKey) == "" {
		return wrapInvalid("missing team key")
	}
	if strings.TrimSpace(p.Sport) == "" {
		return wrapInvalid("missing sport")
	}
	if p.ThreeTeam() {
		if len(p.Sent) > 0 || len(p.Received) > 0 {
			return wrapInvalid("three-team trade must not use sent/received")
		}
		if len(p.PartnerKeys) != 2 {
			return wrapInvalid("three-team trade requires exactly two partner keys")
		}
		for _, m := range p.Movements {
			if strings.TrimSpace(m.FromTeam) == "" || strings.TrimSpace(m.ToTeam) == "" {
				return wrapInvalid("movement missing from/to team")
			}
			if m.FromTeam == m.ToTeam {
				return wrapInvalid("movement from and to the same team")
			}
			if err := validAsset(m.Asset); err != nil {
				return err
			}
		}
		return nil
	}
	if strings.TrimSpace(p.PartnerKey) == "" {
		return wrapInvalid("missing partner key")
	}
	if len(p.Sent) == 0 && len(p.Received) == 0 {
		return wrapInvalid("empty asset sets")
	}
	for _, a := range append(append([]Asset{}, p.Sent...), p.Received...) {
		if err := validAsset(a); err != nil {
			return err
		}
	}
	return nil
}

// DegradedIdentity reports whether any asset in the proposal identifies by
// display name only.
func (p *Proposal) DegradedIdentity() bool {
	for _, a := range p.Sent {
		if a.Degraded() {
			return true
		}
	}
	for _, a := range p.Received {
		if a.Degraded() {
			return true
		}
	}
	for _, m := range p.Movements {
		if m.Asset.Degraded() {
			return true
		}
	}
	return false
}

func validAsset(a Asset) error {
	switch a.Kind {
	case AssetPlayer:
		if a.ExternalID == "" && strings.TrimSpace(a.DisplayName) == "" {
			return wrapInvalid("player asset missing external id and display name")
		}
	case AssetDraftPick:
		if a.Year <= 0 || a.Round <= 0 {
			return wrapInvalid("draft pick missing year or round")
		}
	default:
		return wrapInvalid("unknown asset kind")
	}
	return nil
}

func wrapInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProposal, msg)
}
