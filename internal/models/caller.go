package models

// CallerKind tags whether an authenticated request comes from a person or a device
type CallerKind string

const (
	CallerHuman  CallerKind = "human"
	CallerDevice CallerKind = "device"
)

// Caller is the identity behind an authenticated request
type Caller struct {
	Kind    CallerKind
	ID      int64 // user account id
	OwnerID int64 // owning human for device callers, ID otherwise
}

// HumanCaller builds a caller for a person
func HumanCaller(id int64) Caller {
	return Caller{Kind: CallerHuman, ID: id, OwnerID: id}
}

// DeviceCaller builds a caller for a device account owned by ownerID
func DeviceCaller(id, ownerID int64) Caller {
	return Caller{Kind: CallerDevice, ID: id, OwnerID: ownerID}
}

// CallerFor derives the caller identity of a stored account
func CallerFor(u *User) Caller {
	if u.IsDevice && u.OwnerID != nil {
		return DeviceCaller(u.ID, *u.OwnerID)
	}
	return HumanCaller(u.ID)
}

// IsDevice reports whether the caller is a device account
func (c Caller) IsDevice() bool {
	return c.Kind == CallerDevice
}
