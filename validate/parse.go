package validate

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/poiesic/stratum/core"
)

// Parsed is a generated answer split into text and cited voxel ids.
type Parsed struct {
	Answer string
	IDs    []string
	// Structured reports whether the output contract was honoured.
	Structured bool
}

type contract struct {
	Answer   string   `json:"answer"`
	VoxelIDs []string `json:"voxel_ids"`
}

var idsLine = regexp.MustCompile(`(?im)^\s*VOXEL_IDS\s*:\s*(.*)$`)

// Parse extracts the answer text and every voxel id it cites. The JSON
// contract is tried first, then a VOXEL_IDS: line; ids mentioned inline
// in the answer text always count as citations.
func Parse(text string) Parsed {
	var p Parsed

	body := stripFences(text)
	if obj := extractObject(body); obj != "" {
		var c contract
		if err := json.Unmarshal([]byte(repairJSON(obj)), &c); err == nil && (c.Answer != "" || c.VoxelIDs != nil) {
			p.Answer = strings.TrimSpace(c.Answer)
			p.Structured = true
			for _, id := range c.VoxelIDs {
				p.IDs = appendUnique(p.IDs, strings.TrimSpace(id))
			}
		}
	}

	if !p.Structured {
		p.Answer = body
		if m := idsLine.FindStringSubmatchIndex(body); m != nil {
			for _, id := range core.VoxelIDPattern.FindAllString(body[m[2]:m[3]], -1) {
				p.IDs = appendUnique(p.IDs, id)
			}
			p.Answer = strings.TrimSpace(body[:m[0]] + body[m[1]:])
		}
	}

	for _, id := range core.VoxelIDPattern.FindAllString(p.Answer, -1) {
		p.IDs = appendUnique(p.IDs, id)
	}
	return p
}

// Check returns the cited ids that are absent from ctx, in citation order.
func Check(p Parsed, ctx core.Context) []string {
	known := ctx.IDs()
	var unknown []string
	for _, id := range p.IDs {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

func appendUnique(ids []string, id string) []string {
	if id == "" || slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
