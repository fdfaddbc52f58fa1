package model

import "time"

// Entity is a named node of the graph.
type Entity struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	ClassID              *int64     `json:"class_id,omitempty"`
	Public               *bool      `json:"public,omitempty"` // nil = unspecified
	Archived             bool       `json:"archived"`
	ArchivedDate         *time.Time `json:"archived_date,omitempty"`
	InsertionDate        time.Time  `json:"insertion_date"`
	NewEntriesStickToTop bool       `json:"new_entries_stick_to_top"`
}

// EntityClass names a schema identity whose template entity lists the
// attributes expected on members of the class.
type EntityClass struct {
	ID                      int64  `json:"id"`
	Name                    string `json:"name"`
	TemplateEntityID        int64  `json:"template_entity_id"`
	CreateDefaultAttributes *bool  `json:"create_default_attributes,omitempty"`
}

// Directionality of a relation type.
type Directionality string

const (
	Unidirectional Directionality = "UNI"
	Bidirectional  Directionality = "BI"
	NonDirectional Directionality = "NON"
)

// ValidDirectionalities defines allowed directionality values.
var ValidDirectionalities = map[Directionality]bool{
	Unidirectional: true,
	Bidirectional:  true,
	NonDirectional: true,
}

// RelationType is an entity that also names the reverse direction of the
// relations it types.
type RelationType struct {
	Entity
	NameInReverseDirection string         `json:"name_in_reverse_direction"`
	Directionality         Directionality `json:"directionality"`
}

// Group is an ordered collection of entity references.
type Group struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	InsertionDate        time.Time `json:"insertion_date"`
	AllowMixedClasses    bool      `json:"allow_mixed_classes"`
	NewEntriesStickToTop bool      `json:"new_entries_stick_to_top"`
}

// GroupEntry is one member of a group with its sorting index.
type GroupEntry struct {
	GroupID      int64 `json:"group_id"`
	EntityID     int64 `json:"entity_id"`
	SortingIndex int64 `json:"sorting_index"`
}

// GroupMembership selects members of a group by archival state.
type GroupMembership int

const (
	AllMembers GroupMembership = iota + 1
	NonArchivedMembers
	ArchivedMembers
)

// OmInstance registers a store, local or remote, by a stable id and address.
type OmInstance struct {
	ID            string    `json:"id"`
	Local         bool      `json:"local"`
	Address       string    `json:"address"`
	InsertionDate time.Time `json:"insertion_date"`
	EntityID      *int64    `json:"entity_id,omitempty"`
}

// JournalEntry is one dated event in the journal view.
type JournalEntry struct {
	Date     time.Time `json:"date"`
	Text     string    `json:"text"`
	EntityID int64     `json:"entity_id"`
}
