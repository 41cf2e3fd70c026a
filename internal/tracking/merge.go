package tracking

import (
	"slices"
	"time"

	"github.com/vcscsvcscs/rarecare-backend/pkg/model"
)

// MergeResult summarizes what an import changed
type MergeResult struct {
	Added   int  `json:"added"`
	Skipped int  `json:"skipped"`
	Created bool `json:"created"`
	// MedicationsReplaced is set when the import carried medications
	MedicationsReplaced bool `json:"medicationsReplaced"`
}

// SortEntries orders entries newest first. Entries sharing a date keep their relative order.
func SortEntries(entries []model.TrackingEntry) {
	slices.SortStableFunc(entries, func(a, b model.TrackingEntry) int {
		return b.Date.Compare(a.Date)
	})
}

// entryKey is the dedup key of an entry: its exact millisecond timestamp
func entryKey(e model.TrackingEntry) int64 {
	return e.Date.UnixMilli()
}

// MergeImport folds a parsed import into the stored record for the same (patient, condition).
// A nil existing record is created from the parsed one. Incoming entries whose timestamp is
// already stored are skipped, so importing the same payload twice is a no-op for entries.
// existing is modified in place and returned.
func MergeImport(existing, parsed *model.TrackingRecord, now time.Time) (*model.TrackingRecord, MergeResult) {
	var result MergeResult

	if existing == nil {
		existing = &model.TrackingRecord{
			PatientID:     parsed.PatientID,
			ConditionType: parsed.ConditionType,
			Entries:       []model.TrackingEntry{},
			Medications:   []model.Medication{},
			CreatedAt:     now,
		}
		result.Created = true
	}

	seen := make(map[int64]struct{}, len(existing.Entries)+len(parsed.Entries))
	for _, e := range existing.Entries {
		seen[entryKey(e)] = struct{}{}
	}

	for _, e := range parsed.Entries {
		key := entryKey(e)
		if _, dup := seen[key]; dup {
			result.Skipped++
			continue
		}
		seen[key] = struct{}{}
		existing.Entries = append(existing.Entries, e)
		result.Added++
	}
	SortEntries(existing.Entries)

	if len(parsed.Medications) > 0 {
		existing.Medications = slices.Clone(parsed.Medications)
		result.MedicationsReplaced = true
	}

	existing.Metadata = mergeMetadata(existing.Metadata, parsed.Metadata, now)
	existing.UpdatedAt = now

	return existing, result
}

// mergeMetadata overrides stored fields with the non-empty fields of the new import.
// ArchivePath is taken from the new import as is.
func mergeMetadata(stored, incoming model.ImportMetadata, now time.Time) model.ImportMetadata {
	merged := stored
	if incoming.Source != "" {
		merged.Source = incoming.Source
	}
	if incoming.OriginalFilename != "" {
		merged.OriginalFilename = incoming.OriginalFilename
	}
	if incoming.PatientName != "" {
		merged.PatientName = incoming.PatientName
	}
	if incoming.Version != "" {
		merged.Version = incoming.Version
	}
	// the archive always points at the latest payload, or nowhere when it was not archived
	merged.ArchivePath = incoming.ArchivePath
	importDate := now
	merged.ImportDate = &importDate
	return merged
}

// AddEntry appends a manual entry and keeps the list sorted.
// An entry at an already-stored exact timestamp is rejected with ErrDuplicateEntry.
func AddEntry(record *model.TrackingRecord, entry model.TrackingEntry, now time.Time) error {
	key := entryKey(entry)
	for _, e := range record.Entries {
		if entryKey(e) == key {
			return ErrDuplicateEntry
		}
	}
	if entry.Triggers == nil {
		entry.Triggers = []string{}
	}

	record.Entries = append(record.Entries, entry)
	SortEntries(record.Entries)
	record.UpdatedAt = now
	return nil
}

// RemoveEntry deletes the entry at the exact millisecond timestamp ts
func RemoveEntry(record *model.TrackingRecord, ts time.Time, now time.Time) error {
	key := ts.UnixMilli()
	before := len(record.Entries)
	record.Entries = slices.DeleteFunc(record.Entries, func(e model.TrackingEntry) bool {
		return entryKey(e) == key
	})
	if len(record.Entries) == before {
		return ErrEntryNotFound
	}
	record.UpdatedAt = now
	return nil
}

// RemoveRange deletes every entry whose calendar date (UTC) lies in [from, to], both inclusive.
// It returns the number of entries removed.
func RemoveRange(record *model.TrackingRecord, from, to time.Time, now time.Time) int {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	before := len(record.Entries)
	record.Entries = slices.DeleteFunc(record.Entries, func(e model.TrackingEntry) bool {
		d := e.Date.UTC()
		return !d.Before(start) && d.Before(end)
	})

	removed := before - len(record.Entries)
	if removed > 0 {
		record.UpdatedAt = now
	}
	return removed
}
