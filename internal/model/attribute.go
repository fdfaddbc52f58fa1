package model

import (
	"fmt"
	"time"
)

// FormID identifies an attribute form. The numeric values are persisted in
// AttributeSorting and must not change.
type FormID int

const (
	QuantityForm               FormID = 1
	DateForm                   FormID = 2
	BooleanForm                FormID = 3
	FileForm                   FormID = 4
	TextForm                   FormID = 5
	RelationToLocalEntityForm  FormID = 6
	RelationToGroupForm        FormID = 7
	RelationToRemoteEntityForm FormID = 8
)

// Forms lists every attribute form in id order.
var Forms = []FormID{
	QuantityForm,
	DateForm,
	BooleanForm,
	FileForm,
	TextForm,
	RelationToLocalEntityForm,
	RelationToGroupForm,
	RelationToRemoteEntityForm,
}

var formNames = map[FormID]string{
	QuantityForm:               "quantity",
	DateForm:                   "date",
	BooleanForm:                "boolean",
	FileForm:                   "file",
	TextForm:                   "text",
	RelationToLocalEntityForm:  "relation-to-local-entity",
	RelationToGroupForm:        "relation-to-group",
	RelationToRemoteEntityForm: "relation-to-remote-entity",
}

// String returns the form's name.
func (f FormID) String() string {
	if name, ok := formNames[f]; ok {
		return name
	}
	return fmt.Sprintf("form(%d)", int(f))
}

// Valid reports whether f is a known form.
func (f FormID) Valid() bool {
	_, ok := formNames[f]
	return ok
}

// ParseForm returns the form with the given name.
func ParseForm(name string) (FormID, error) {
	for id, n := range formNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute form %q", name)
}

// SortingKey identifies the AttributeSorting row owned by an attribute.
type SortingKey struct {
	EntityID    int64  `json:"entity_id"`
	FormID      FormID `json:"form_id"`
	AttributeID int64  `json:"attribute_id"`
}

// Attribute is the closed set of attribute forms. Only types in this package
// implement it.
type Attribute interface {
	Form() FormID
	Key() SortingKey
	// TypeID is the attribute-type entity, or the relation type for relations.
	TypeID() int64
	isAttribute()
}

// SortedAttribute pairs an attribute with its position in its entity.
type SortedAttribute struct {
	SortingIndex int64
	Attribute    Attribute
}

// QuantityAttribute is a number with a unit.
type QuantityAttribute struct {
	ID              int64      `json:"id"`
	EntityID        int64      `json:"entity_id"`
	AttrTypeID      int64      `json:"attr_type_id"`
	UnitID          int64      `json:"unit_id"`
	Number          float64    `json:"number"`
	ValidOnDate     *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate time.Time  `json:"observation_date"`
}

// TextAttribute is a text body.
type TextAttribute struct {
	ID              int64      `json:"id"`
	EntityID        int64      `json:"entity_id"`
	AttrTypeID      int64      `json:"attr_type_id"`
	Text            string     `json:"text"`
	ValidOnDate     *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate time.Time  `json:"observation_date"`
}

// DateAttribute is a calendar date.
type DateAttribute struct {
	ID              int64      `json:"id"`
	EntityID        int64      `json:"entity_id"`
	AttrTypeID      int64      `json:"attr_type_id"`
	Date            time.Time  `json:"date"`
	ValidOnDate     *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate time.Time  `json:"observation_date"`
}

// BooleanAttribute is a true/false fact.
type BooleanAttribute struct {
	ID              int64      `json:"id"`
	EntityID        int64      `json:"entity_id"`
	AttrTypeID      int64      `json:"attr_type_id"`
	Value           bool       `json:"value"`
	ValidOnDate     *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate time.Time  `json:"observation_date"`
}

// FileAttribute describes a stored file. Content is kept apart from the row.
type FileAttribute struct {
	ID               int64     `json:"id"`
	EntityID         int64     `json:"entity_id"`
	AttrTypeID       int64     `json:"attr_type_id"`
	Description      string    `json:"description"`
	OriginalFileDate time.Time `json:"original_file_date"`
	StoredDate       time.Time `json:"stored_date"`
	OriginalFilePath string    `json:"original_file_path"`
	Readable         bool      `json:"readable"`
	Writable         bool      `json:"writable"`
	Executable       bool      `json:"executable"`
	Size             int64     `json:"size"`
	MD5Hash          string    `json:"md5_hash"`
}

// RelationToLocalEntity is a typed edge to an entity in the same store.
type RelationToLocalEntity struct {
	ID              int64      `json:"id"`
	RelTypeID       int64      `json:"rel_type_id"`
	EntityID        int64      `json:"entity_id"`
	EntityID2       int64      `json:"entity_id_2"`
	ValidOnDate     *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate time.Time  `json:"observation_date"`
}

// RelationToRemoteEntity is a typed edge to an entity held by another
// registered OmInstance. EntityID2 is the id within that instance.
type RelationToRemoteEntity struct {
	ID               int64      `json:"id"`
	RelTypeID        int64      `json:"rel_type_id"`
	EntityID         int64      `json:"entity_id"`
	RemoteInstanceID string     `json:"remote_instance_id"`
	EntityID2        int64      `json:"entity_id_2"`
	ValidOnDate      *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate  time.Time  `json:"observation_date"`
}

// RelationToGroup is a typed edge to a group.
type RelationToGroup struct {
	ID              int64      `json:"id"`
	EntityID        int64      `json:"entity_id"`
	RelTypeID       int64      `json:"rel_type_id"`
	GroupID         int64      `json:"group_id"`
	ValidOnDate     *time.Time `json:"valid_on_date,omitempty"`
	ObservationDate time.Time  `json:"observation_date"`
}

func (a QuantityAttribute) Form() FormID { return QuantityForm }
func (a QuantityAttribute) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: QuantityForm, AttributeID: a.ID}
}
func (a QuantityAttribute) TypeID() int64 { return a.AttrTypeID }
func (QuantityAttribute) isAttribute() {}

func (a TextAttribute) Form() FormID { return TextForm }
func (a TextAttribute) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: TextForm, AttributeID: a.ID}
}
func (a TextAttribute) TypeID() int64 { return a.AttrTypeID }
func (TextAttribute) isAttribute() {}

func (a DateAttribute) Form() FormID { return DateForm }
func (a DateAttribute) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: DateForm, AttributeID: a.ID}
}
func (a DateAttribute) TypeID() int64 { return a.AttrTypeID }
func (DateAttribute) isAttribute() {}

func (a BooleanAttribute) Form() FormID { return BooleanForm }
func (a BooleanAttribute) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: BooleanForm, AttributeID: a.ID}
}
func (a BooleanAttribute) TypeID() int64 { return a.AttrTypeID }
func (BooleanAttribute) isAttribute() {}

func (a FileAttribute) Form() FormID { return FileForm }
func (a FileAttribute) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: FileForm, AttributeID: a.ID}
}
func (a FileAttribute) TypeID() int64 { return a.AttrTypeID }
func (FileAttribute) isAttribute() {}

func (a RelationToLocalEntity) Form() FormID { return RelationToLocalEntityForm }
func (a RelationToLocalEntity) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: RelationToLocalEntityForm, AttributeID: a.ID}
}
func (a RelationToLocalEntity) TypeID() int64 { return a.RelTypeID }
func (RelationToLocalEntity) isAttribute() {}

func (a RelationToRemoteEntity) Form() FormID { return RelationToRemoteEntityForm }
func (a RelationToRemoteEntity) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: RelationToRemoteEntityForm, AttributeID: a.ID}
}
func (a RelationToRemoteEntity) TypeID() int64 { return a.RelTypeID }
func (RelationToRemoteEntity) isAttribute() {}

func (a RelationToGroup) Form() FormID { return RelationToGroupForm }
func (a RelationToGroup) Key() SortingKey {
	return SortingKey{EntityID: a.EntityID, FormID: RelationToGroupForm, AttributeID: a.ID}
}
func (a RelationToGroup) TypeID() int64 { return a.RelTypeID }
func (RelationToGroup) isAttribute() {}
