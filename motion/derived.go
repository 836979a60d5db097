package motion

// AngleDef defines a relative angle between the vectors start1→end1 and start2→end2.
// All four fields are tracker names.
type AngleDef struct {
	Name   string
	Start1 string
	End1   string
	Start2 string
	End2   string
}

// References returns the tracker names the angle depends on.
func (def AngleDef) References() []string {
	return []string{def.Start1, def.End1, def.Start2, def.End2}
}

// rename replaces every reference to oldName. Reports whether anything changed.
func (def *AngleDef) rename(oldName, newName string) bool {
	changed := false
	for _, ref := range []*string{&def.Start1, &def.End1, &def.Start2, &def.End2} {
		if *ref == oldName {
			*ref = newName
			changed = true
		}
	}
	return changed
}

// DistanceDef defines the displacement vector from tracker Start to tracker End.
type DistanceDef struct {
	Name  string
	Start string
	End   string
}

func (def DistanceDef) References() []string {
	return []string{def.Start, def.End}
}

func (def *DistanceDef) rename(oldName, newName string) bool {
	changed := false
	for _, ref := range []*string{&def.Start, &def.End} {
		if *ref == oldName {
			*ref = newName
			changed = true
		}
	}
	return changed
}

// angleAt computes one sample. Missing targets yield NaN.
func angleAt(start1, end1, start2, end2 TrackerSeries, i int) float64 {
	return RelativeAngle(start1.Target[i], end1.Target[i], start2.Target[i], end2.Target[i])
}

// distanceAt computes one sample. Missing targets yield NaN.
func distanceAt(start, end TrackerSeries, i int) Point {
	return Displacement(start.Target[i], end.Target[i])
}

// ComputeAngle recomputes the whole history of an angle from tracker targets.
func ComputeAngle(start1, end1, start2, end2 TrackerSeries) AngleSeries {
	n := start1.Len()
	out := NewAngleSeries(n)
	for i := 0; i < n; i++ {
		out.Angle[i] = angleAt(start1, end1, start2, end2, i)
	}
	return out
}

// ComputeDistance recomputes the whole history of a distance from tracker targets.
func ComputeDistance(start, end TrackerSeries) DistanceSeries {
	n := start.Len()
	out := NewDistanceSeries(n)
	for i := 0; i < n; i++ {
		out.Delta[i] = distanceAt(start, end, i)
	}
	return out
}
