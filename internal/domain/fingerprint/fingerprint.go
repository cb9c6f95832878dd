// Package fingerprint derives the content hash that identifies a trade.
//
// The hash is the caching key for grades and audits, so it must be stable
// under asset reordering and presentation-order swaps of three-team
// partners, while keeping sent and received semantically distinct.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/sportswire/gmtrade/internal/domain/trade"
)

// Fingerprint is a fixed-length content hash of a proposal.
type Fingerprint string

const (
	segmentSeparator = "|"
	hexLength        = 16 // 64 bits of SHA-256; negligible collision risk at cache scale
)

// Of computes the fingerprint of a proposal. Pure and total: it never
// errors and never performs I/O. Callers validate proposals beforehand.
func Of(p *trade.Proposal) Fingerprint {
	parts := []string{p.TeamKey, p.Sport}

	if p.ThreeTeam() {
		partners := append([]string{}, p.PartnerKeys...)
		sort.Strings(partners)
		parts = append(parts, "partners:"+strings.Join(partners, ","))

		var players, picks []string
		for _, m := range p.Movements {
			key := m.FromTeam + ">" + m.ToTeam + ":"
			if m.Asset.Kind == trade.AssetDraftPick {
				picks = append(picks, key+pickIdentity(m.Asset))
			} else {
				players = append(players, key+m.Asset.Identity())
			}
		}
		parts = appendGroup(parts, "players", players)
		parts = appendGroup(parts, "picks", picks)
	} else {
		parts = append(parts, "partner:"+p.PartnerKey)
		sentPlayers, sentPicks := split(p.Sent)
		recvPlayers, recvPicks := split(p.Received)
		parts = appendGroup(parts, "sent", sentPlayers)
		parts = appendGroup(parts, "received", recvPlayers)
		parts = appendGroup(parts, "sent_picks", sentPicks)
		parts = appendGroup(parts, "received_picks", recvPicks)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, segmentSeparator)))
	return Fingerprint(hex.EncodeToString(sum[:])[:hexLength])
}

// split separates asset identities into player and pick groups, each
// sorted independently so submission order never perturbs the hash.
func split(assets []trade.Asset) (players, picks []string) {
	for _, a := range assets {
		if a.Kind == trade.AssetDraftPick {
			picks = append(picks, pickIdentity(a))
		} else {
			players = append(players, a.Identity())
		}
	}
	sort.Strings(players)
	sort.Strings(picks)
	return players, picks
}

// appendGroup adds a labeled segment only when the group is non-empty, so
// an absent group and an empty-but-present group hash identically.
func appendGroup(parts []string, label string, group []string) []string {
	if len(group) == 0 {
		return parts
	}
	sorted := append([]string{}, group...)
	sort.Strings(sorted)
	return append(parts, label+":"+strings.Join(sorted, ","))
}

func pickIdentity(a trade.Asset) string {
	return strconv.Itoa(a.Year) + ":" + strconv.Itoa(a.Round)
}

// String returns the hex form.
func (f Fingerprint) String() string { return string(f) }
