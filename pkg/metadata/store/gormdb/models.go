package gormdb

import (
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/mtpd/pkg/metadata"
)

// objectModel is the row stored for each metadata.Object.
type objectModel struct {
	Handle          uint32    `gorm:"primaryKey;autoIncrement:false"`
	StorageID       uint32    `gorm:"not null;index"`
	Parent          uint32    `gorm:"not null;index"`
	Format          uint16    `gorm:"not null"`
	AssociationType uint16    `gorm:"not null;default:0"`
	Folder          bool      `gorm:"not null;default:false"`
	Name            string    `gorm:"not null"`
	Path            string    `gorm:"not null;uniqueIndex"`
	Size            uint64    `gorm:"not null;default:0"`
	Keywords        string
	PUID            string    `gorm:"column:puid;size:36;not null"`
	CreatedTime     time.Time `gorm:"column:created"`
	ModifiedTime    time.Time `gorm:"column:modified"`
	AddedTime       time.Time `gorm:"column:added"`
}

func (objectModel) TableName() string { return "objects" }

// referenceModel stores one entry of an object's reference list.
type referenceModel struct {
	Handle   uint32 `gorm:"primaryKey;autoIncrement:false"`
	Position int    `gorm:"column:ord;primaryKey;autoIncrement:false"`
	Target   uint32 `gorm:"not null"`
}

func (referenceModel) TableName() string { return "object_references" }

// sequenceModel holds the next handle to allocate. Handles are never reused,
// which SQLite rowid allocation alone does not guarantee.
type sequenceModel struct {
	Name string `gorm:"primaryKey;size:32"`
	Next uint32 `gorm:"not null"`
}

func (sequenceModel) TableName() string { return "sequences" }

// allModels lists the models migrated on open.
func allModels() []any {
	return []any{&objectModel{}, &referenceModel{}, &sequenceModel{}}
}

func toModel(o *metadata.Object) *objectModel {
	return &objectModel{
		Handle:          o.Handle,
		StorageID:       o.StorageID,
		Parent:          o.Parent,
		Format:          o.Format,
		AssociationType: o.AssociationType,
		Folder:          o.Folder,
		Name:            o.Name,
		Path:            o.Path,
		Size:            o.Size,
		Keywords:        o.Keywords,
		PUID:            o.PUID.String(),
		CreatedTime:     o.Created,
		ModifiedTime:    o.Modified,
		AddedTime:       o.Added,
	}
}

func (m *objectModel) toObject() *metadata.Object {
	puid, _ := uuid.Parse(m.PUID)
	return &metadata.Object{
		Handle:          m.Handle,
		StorageID:       m.StorageID,
		Parent:          m.Parent,
		Format:          m.Format,
		AssociationType: m.AssociationType,
		Folder:          m.Folder,
		Name:            m.Name,
		Path:            m.Path,
		Size:            m.Size,
		Keywords:        m.Keywords,
		PUID:            puid,
		Created:         m.CreatedTime,
		Modified:        m.ModifiedTime,
		Added:           m.AddedTime,
	}
}
