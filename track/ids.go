package track

// TrackSlotId is the index of a row in an Arena.
type TrackSlotId int32

// TrackId uniquely identifies a track within an event.
type TrackId int64

// EventId identifies an event.
type EventId int32

// StreamId identifies an independent execution stream.
type StreamId int32

// PrimaryId is the index of a primary within its event.
type PrimaryId int32

const (
	NoSlot    TrackSlotId = -1
	NoTrack   TrackId     = -1
	NoEvent   EventId     = -1
	NoStream  StreamId    = -1
	NoPrimary PrimaryId   = -1
)

func (id TrackSlotId) Valid() bool { return id >= 0 }
func (id TrackId) Valid() bool     { return id >= 0 }
func (id EventId) Valid() bool     { return id >= 0 }
func (id StreamId) Valid() bool    { return id >= 0 }
func (id PrimaryId) Valid() bool   { return id >= 0 }
