package scheduling

import "time"

// SlotRange is one candidate time window produced by slicing a block.
type SlotRange struct {
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
}

// Overlaps is the half-open interval intersection test: two slots overlap
// when existing.start < new.end && existing.end > new.start, so slots that
// share a boundary do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// SliceBlock splits the window [startMinuteOfDay, endMinuteOfDay) of day
// into contiguous fixed-duration sub-slots. A trailing slice that would not
// fit whole is dropped. Returns nil when the parameters produce no slots.
func SliceBlock(day time.Time, startMinuteOfDay, endMinuteOfDay, slotDurationMinutes int) []SlotRange {
	if slotDurationMinutes <= 0 || endMinuteOfDay <= startMinuteOfDay {
		return nil
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	blockStart := midnight.Add(time.Duration(startMinuteOfDay) * time.Minute)
	blockEnd := midnight.Add(time.Duration(endMinuteOfDay) * time.Minute)
	step := time.Duration(slotDurationMinutes) * time.Minute

	var ranges []SlotRange
	for cur := blockStart; cur.Before(blockEnd); cur = cur.Add(step) {
		end := cur.Add(step)
		if end.After(blockEnd) {
			break
		}
		ranges = append(ranges, SlotRange{
			StartTime:       cur,
			EndTime:         end,
			DurationMinutes: slotDurationMinutes,
		})
	}
	return ranges
}
