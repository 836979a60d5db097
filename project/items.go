package project

import (
	"github.com/LdDl/motion2d/motion"
	"github.com/LdDl/motion2d/session"
	"github.com/pkg/errors"
)

// tab10 colors, in the order new items receive them
var tab10 = []session.Color{
	{31, 119, 180},
	{255, 127, 14},
	{44, 160, 44},
	{214, 39, 40},
	{148, 103, 189},
	{140, 86, 75},
	{227, 119, 194},
	{127, 127, 127},
	{188, 189, 34},
	{23, 190, 207},
}

type palette struct {
	next int
}

func newPalette() *palette {
	return &palette{}
}

func (pal *palette) take() session.Color {
	color := tab10[pal.next%len(tab10)]
	pal.next++
	return color
}

// itemNames returns every tracker, angle and distance name. They share one namespace
// since they share the columns of the exported table.
func (p *Project[F]) itemNames() []string {
	var names []string
	for _, info := range p.coordinator.Trackers() {
		names = append(names, info.Name)
	}
	for _, def := range p.coordinator.Angles() {
		names = append(names, def.Name)
	}
	for _, def := range p.coordinator.Distances() {
		names = append(names, def.Name)
	}
	return names
}

// AddTracker starts tracking bbox on the current frame. A name already in use is made
// unique and an empty tracker type means the configured default. Returns the name used.
func (p *Project[F]) AddTracker(name string, bbox motion.Rectangle, offset motion.Point, trackerType string) (string, error) {
	if trackerType == "" {
		p.mu.Lock()
		trackerType = p.cfg.Tracking.DefaultType
		p.mu.Unlock()
	}
	name = motion.UniqueName(name, p.itemNames())
	p.mu.Lock()
	p.trackerColors[name] = p.palette.take()
	p.mu.Unlock()
	if err := p.coordinator.AddTracker(name, bbox, offset, trackerType); err != nil {
		p.mu.Lock()
		delete(p.trackerColors, name)
		p.mu.Unlock()
		return name, err
	}
	return name, nil
}

// MoveTracker re-seats an existing tracker on bbox at the current frame.
func (p *Project[F]) MoveTracker(name string, bbox motion.Rectangle) error {
	for _, info := range p.coordinator.Trackers() {
		if info.Name == name {
			return p.coordinator.AddTracker(name, bbox, info.Offset, info.TrackerType)
		}
	}
	return errors.Wrapf(motion.ErrUnknownItem, "tracker '%s'", name)
}

// EditTracker renames a tracker and changes its type. Empty newType keeps the type.
func (p *Project[F]) EditTracker(name, newName, newType string) error {
	if newType == "" {
		for _, info := range p.coordinator.Trackers() {
			if info.Name == name {
				newType = info.TrackerType
			}
		}
	}
	if err := p.coordinator.EditTracker(name, newName, newType); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if color, ok := p.trackerColors[name]; ok && name != newName {
		p.trackerColors[newName] = color
		delete(p.trackerColors, name)
	}
	return nil
}

// RemoveTracker removes a tracker together with every angle and distance using it.
func (p *Project[F]) RemoveTracker(name string) error {
	if err := p.coordinator.RemoveTracker(name); err != nil {
		return err
	}
	p.removeDependents(name)
	return nil
}

// removeDependents drops the derived items referencing tracker name and its color.
func (p *Project[F]) removeDependents(name string) {
	angles, distances := p.coordinator.DependentsOf(name)
	for _, angle := range angles {
		if err := p.RemoveAngle(angle); err != nil {
			p.log.Warnf("[Project] Can't remove angle '%s': %v", angle, err)
		}
	}
	for _, distance := range distances {
		if err := p.RemoveDistance(distance); err != nil {
			p.log.Warnf("[Project] Can't remove distance '%s': %v", distance, err)
		}
	}
	p.mu.Lock()
	delete(p.trackerColors, name)
	p.mu.Unlock()
	if len(angles)+len(distances) > 0 {
		p.log.Infof("[Project] Removed %d angles and %d distances depending on '%s'", len(angles), len(distances), name)
	}
}

// AddAngle adds an angle. A name already in use is made unique. Returns the name used.
func (p *Project[F]) AddAngle(def motion.AngleDef) (string, error) {
	def.Name = motion.UniqueName(def.Name, p.itemNames())
	if err := p.coordinator.AddAngle(def); err != nil {
		return def.Name, err
	}
	p.mu.Lock()
	p.angleColors[def.Name] = p.palette.take()
	p.mu.Unlock()
	return def.Name, nil
}

// AddDistance adds a distance. A name already in use is made unique. Returns the name used.
func (p *Project[F]) AddDistance(def motion.DistanceDef) (string, error) {
	def.Name = motion.UniqueName(def.Name, p.itemNames())
	if err := p.coordinator.AddDistance(def); err != nil {
		return def.Name, err
	}
	p.mu.Lock()
	p.distanceColors[def.Name] = p.palette.take()
	p.mu.Unlock()
	return def.Name, nil
}

func (p *Project[F]) RemoveAngle(name string) error {
	if err := p.coordinator.RemoveAngle(name); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.angleColors, name)
	p.mu.Unlock()
	return nil
}

func (p *Project[F]) RemoveDistance(name string) error {
	if err := p.coordinator.RemoveDistance(name); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.distanceColors, name)
	p.mu.Unlock()
	return nil
}

// TrackerColor returns the display color of a tracker.
func (p *Project[F]) TrackerColor(name string) (session.Color, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	color, ok := p.trackerColors[name]
	return color, ok
}

// ImportMarkers adds the trackers, angles and distances of another session at the
// current frame. Trackers are seeded with their first recorded bbox.
func (p *Project[F]) ImportMarkers(path string) error {
	markers, err := session.ImportMarkers(path)
	if err != nil {
		return err
	}
	renamed := make(map[string]string, len(markers.Trackers))
	for _, def := range markers.Trackers {
		name, err := p.AddTracker(def.Name, markers.Seeds[def.Name], def.Offset, def.TrackerType)
		if err != nil {
			return errors.Wrapf(err, "Can't import tracker '%s'", def.Name)
		}
		p.mu.Lock()
		p.trackerColors[name] = def.Color
		p.mu.Unlock()
		renamed[def.Name] = name
	}
	for _, def := range markers.Angles {
		angle := def.AngleDef
		angle.Start1, angle.End1 = renamed[angle.Start1], renamed[angle.End1]
		angle.Start2, angle.End2 = renamed[angle.Start2], renamed[angle.End2]
		name, err := p.AddAngle(angle)
		if err != nil {
			return errors.Wrapf(err, "Can't import angle '%s'", def.Name)
		}
		p.mu.Lock()
		p.angleColors[name] = def.Color
		p.mu.Unlock()
	}
	for _, def := range markers.Distances {
		distance := def.DistanceDef
		distance.Start, distance.End = renamed[distance.Start], renamed[distance.End]
		name, err := p.AddDistance(distance)
		if err != nil {
			return errors.Wrapf(err, "Can't import distance '%s'", def.Name)
		}
		p.mu.Lock()
		p.distanceColors[name] = def.Color
		p.mu.Unlock()
	}
	p.log.Infof("[Project] Imported %d trackers from '%s'", len(markers.Trackers), path)
	return nil
}
