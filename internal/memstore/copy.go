package memstore

import (
	"time"

	"homelink/internal/models"
)

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyDuration(d *models.Duration) *models.Duration {
	if d == nil {
		return nil
	}
	return models.NewDuration(d.Duration)
}

func copyUser(u models.User) models.User {
	u.OwnerID = copyInt(u.OwnerID)
	return u
}

func copyDevice(d *models.Device) *models.Device {
	c := *d
	c.AccountID = copyInt(d.AccountID)
	c.SpaceID = copyInt(d.SpaceID)
	c.Capabilities.Components = make([]models.Component, len(d.Capabilities.Components))
	for i, comp := range d.Capabilities.Components {
		comp.Actions = append([]string(nil), comp.Actions...)
		c.Capabilities.Components[i] = comp
	}
	return &c
}

func copyCommand(cmd *models.Command) *models.Command {
	c := *cmd
	c.ScheduledAt = copyTime(cmd.ScheduledAt)
	c.RepeatInterval = copyDuration(cmd.RepeatInterval)
	return &c
}

func copyTriggers(ts []models.Trigger) []models.Trigger {
	out := make([]models.Trigger, len(ts))
	for i, t := range ts {
		t.SatisfiedAt = copyTime(t.SatisfiedAt)
		out[i] = t
	}
	return out
}

func copyLink(l *models.CommandsLink) *models.CommandsLink {
	c := *l
	c.Triggers = copyTriggers(l.Triggers)
	c.Results = append([]models.Result(nil), l.Results...)
	c.TTL = copyDuration(l.TTL)
	c.StartedAt = copyTime(l.StartedAt)
	return &c
}
