package epub

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pagecast/pagecast/internal/structure"
)

// TimedUnit is one text/audio pair in a page's sync document.
type TimedUnit struct {
	TargetID  string // element id in the page's content document
	AudioFile string
	BeginMS   int
	EndMS     int
}

// PageTimedUnits builds the ordered timed units for one page from its
// AudioSync records.
//
// Block-level syncs are ordered by the referenced block's reading order,
// not by start time: reading order is authoritative for sequencing and the
// start time is metadata. Only blocks the content document actually renders
// can be sync targets; a sync addressing a filtered block (footnote,
// sidebar, decorative text) is dropped so every anchor resolves. A
// page-level sync (no block id) is split into equal shares over the page's
// text-layer blocks, with the last block absorbing the rounding remainder
// so the shares sum exactly to the page total.
func PageTimedUnits(page *structure.PageStructure, syncs []structure.AudioSync) []TimedUnit {
	blocks := TextLayerBlocks(page)
	rendered := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		rendered[b.ID] = true
	}

	type blockUnit struct {
		unit  TimedUnit
		order int
	}

	var blockUnits []blockUnit
	var pageSync *structure.AudioSync
	for i, s := range syncs {
		if s.PageNumber != page.PageNumber {
			continue
		}
		if s.BlockID == "" {
			pageSync = &syncs[i]
			continue
		}
		b := page.BlockByID(s.BlockID)
		if b == nil || !rendered[b.ID] {
			continue
		}
		blockUnits = append(blockUnits, blockUnit{
			unit: TimedUnit{
				TargetID:  structure.SyncTargetID(b),
				AudioFile: s.AudioFile,
				BeginMS:   s.StartMS,
				EndMS:     s.EndMS,
			},
			order: b.ReadingOrder,
		})
	}

	if len(blockUnits) > 0 {
		sort.SliceStable(blockUnits, func(i, j int) bool {
			return blockUnits[i].order < blockUnits[j].order
		})
		units := make([]TimedUnit, len(blockUnits))
		for i, bu := range blockUnits {
			units[i] = bu.unit
		}
		return units
	}

	if pageSync == nil || len(blocks) == 0 {
		return nil
	}

	share := pageSync.DurationMS() / len(blocks)
	units := make([]TimedUnit, 0, len(blocks))
	offset := pageSync.StartMS
	for i, b := range blocks {
		end := offset + share
		if i == len(blocks)-1 {
			// Last block absorbs the rounding remainder.
			end = pageSync.EndMS
		}
		units = append(units, TimedUnit{
			TargetID:  structure.SyncTargetID(b),
			AudioFile: pageSync.AudioFile,
			BeginMS:   offset,
			EndMS:     end,
		})
		offset = end
	}
	return units
}

// generateSMIL creates the sync document for a page. Each par references
// an element id in the page's content document and an audio clip range.
func generateSMIL(pageNumber int, units []TimedUnit) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<smil xmlns="http://www.w3.org/ns/SMIL" xmlns:epub="http://www.idpf.org/2007/ops" version="3.0">
  <body>
    <seq id="seq1" epub:textref="../`)
	sb.WriteString(structure.PageDocName(pageNumber))
	sb.WriteString(`">
`)

	for i, u := range units {
		sb.WriteString(fmt.Sprintf(`      <par id="par%d">
        <text src="../%s#%s"/>
        <audio src="../audio/%s" clipBegin="%s" clipEnd="%s"/>
      </par>
`, i+1, structure.PageDocName(pageNumber), u.TargetID,
			u.AudioFile, formatClockTime(u.BeginMS), formatClockTime(u.EndMS)))
	}

	sb.WriteString(`    </seq>
  </body>
</smil>
`)

	return sb.String()
}

// formatClockTime converts milliseconds to SMIL clock time (HH:MM:SS.mmm).
func formatClockTime(ms int) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}

// pageDurationMS sums the clip lengths of a page's units.
func pageDurationMS(units []TimedUnit) int {
	total := 0
	for _, u := range units {
		total += u.EndMS - u.BeginMS
	}
	return total
}
